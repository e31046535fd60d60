// Package bridge is the coordination layer between the printers and the
// sinks: one poller per printer drives the uart-wifi client on a clock,
// translates replies into sensor snapshots, debounces the devices'
// notoriously flaky wifi before declaring them offline, and fans accepted
// snapshots out to every sink and the history store.
package bridge
