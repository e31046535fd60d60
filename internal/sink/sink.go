// Package sink defines the publishing side of the bridge: a Sink receives
// every accepted snapshot, and a Registry maps `sink "<type>" "<name>"`
// config blocks to the Go constructors that build them.
package sink

import (
	"context"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/monoxbridge/internal/sensors"
)

// Sink is a publishing target for printer snapshots. Publish must be safe
// for concurrent use; the fleet calls it from every poller.
type Sink interface {
	// Name identifies the sink instance in logs ("home_assistant.ha").
	Name() string

	// Publish delivers one snapshot. Errors are logged by the caller and
	// never stop the poll loop.
	Publish(ctx context.Context, snap *sensors.Snapshot) error

	// Close releases the sink's connections.
	Close() error
}

// Factory builds a sink instance from its config block. The body is the
// sink's raw HCL arguments; evalCtx carries the `env` object.
type Factory func(ctx context.Context, name string, body hcl.Body, evalCtx *hcl.EvalContext) (Sink, error)
