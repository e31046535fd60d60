// Package logsink writes snapshots to the application log. It is the
// fallback sink when no other sink is configured, and a handy tap while
// debugging a grid of real sinks.
package logsink

import (
	"context"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/sink"
)

// Type is the config block label this sink registers under.
const Type = "log"

// args is the sink's HCL argument schema.
type args struct {
	// Level is "debug" or "info" (the default).
	Level string `hcl:"level,optional"`
}

type logSink struct {
	name  string
	debug bool
}

// Register adds this sink's factory to the registry.
func Register(r *sink.Registry) {
	r.Register(Type, New)
}

// New builds a log sink from its config block.
func New(_ context.Context, name string, body hcl.Body, evalCtx *hcl.EvalContext) (sink.Sink, error) {
	var a args
	if err := config.DecodeSinkBody(body, evalCtx, &a); err != nil {
		return nil, err
	}
	return &logSink{name: Type + "." + name, debug: a.Level == "debug"}, nil
}

func (s *logSink) Name() string { return s.name }

func (s *logSink) Publish(ctx context.Context, snap *sensors.Snapshot) error {
	logger := ctxlog.FromContext(ctx).With(
		"printer", snap.Printer.Name,
		"state", snap.State,
		"online", snap.Online,
	)
	if s.debug {
		logger.Debug("Printer snapshot.", "values", snap.Values)
		return nil
	}
	logger.Info("Printer snapshot.")
	return nil
}

func (s *logSink) Close() error { return nil }
