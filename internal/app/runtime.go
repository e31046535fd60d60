package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/monoxbridge/internal/bridge"
	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/history"
	"github.com/vk/monoxbridge/internal/sink"
	"github.com/vk/monoxbridge/internal/sink/logsink"
)

// runtime is everything built from one configuration load: the sinks, the
// optional history store, and the fleet wired to both. A reload tears the
// whole runtime down and builds a fresh one.
type runtime struct {
	model *config.Model
	sinks []sink.Sink
	store *history.Store
	fleet *bridge.Fleet
}

// buildRuntime constructs the sinks, history store, and fleet for a model.
// On error everything already constructed is closed again.
func (a *App) buildRuntime(ctx context.Context, model *config.Model) (*runtime, error) {
	rt := &runtime{model: model}

	for _, declared := range model.Sinks {
		built, err := a.registry.Build(ctx, declared.Type, declared.Name, declared.Body, model.EvalContext)
		if err != nil {
			rt.close(ctx)
			return nil, fmt.Errorf("failed to build sink %q: %w", declared.Name, err)
		}
		rt.sinks = append(rt.sinks, built)
	}
	// A config without sinks still logs every snapshot, so a bare setup
	// produces visible output.
	if len(rt.sinks) == 0 {
		built, err := a.registry.Build(ctx, logsink.Type, "default", hcl.EmptyBody(), model.EvalContext)
		if err != nil {
			return nil, err
		}
		rt.sinks = append(rt.sinks, built)
	}

	retention := config.DefaultRetention
	if model.History != nil {
		store, err := history.Open(ctx, model.History.Path)
		if err != nil {
			rt.close(ctx)
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		rt.store = store
		retention = model.History.Retention
	}

	rt.fleet = bridge.NewFleet(model, bridge.Options{
		Sinks:     rt.sinks,
		Store:     rt.store,
		Retention: retention,
	})
	return rt, nil
}

// close releases the runtime's sinks and history store.
func (rt *runtime) close(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, s := range rt.sinks {
		if err := s.Close(); err != nil {
			logger.Warn("Sink close failed.", "sink", s.Name(), "error", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("History store close failed.", "error", err)
		}
	}
}
