// Package config loads and validates the HCL configuration that declares
// the printer fleet, the publishing sinks, and the history store. Sink
// blocks keep their raw HCL body; each sink constructor decodes its own
// arguments against the shared evaluation context, so the config layer does
// not need to know every sink's schema.
package config
