// Package app encapsulates the application's dependencies, configuration,
// and lifecycle: it loads the HCL config, constructs the sinks and the
// history store, runs the polling fleet, and serves the local status HTTP
// endpoints. The config file is watched and the fleet is rebuilt when it
// changes.
package app
