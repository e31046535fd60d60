package app

import (
	"context"
	"fmt"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/discovery"
)

// Run executes the main application logic and blocks until the context is
// cancelled or a one-shot mode finishes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.DiscoverCIDR != "" {
		return a.runDiscovery(ctx)
	}

	rt, err := a.buildRuntime(ctx, a.currentModel())
	if err != nil {
		return err
	}

	if a.cfg.Once {
		defer rt.close(ctx)
		return a.runOnce(ctx, rt)
	}

	if port := a.healthcheckPort(); port > 0 {
		server := a.startStatusServer(port)
		defer a.stopStatusServer(server)
	}

	reload := make(chan string, 1)
	watcher, err := a.watchConfig(ctx, reload)
	if err != nil {
		a.logger.Warn("Config watching disabled.", "error", err)
	} else {
		defer watcher.Close()
	}

	for {
		a.setCurrent(rt.model, rt.fleet)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			rt.fleet.Run(runCtx)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			rt.close(ctx)
			a.logger.Debug("App.Run method finished.")
			return nil

		case changed := <-reload:
			a.logger.Info("Configuration changed, reloading.", "file", changed)
			cancel()
			<-done
			previous := rt.model
			rt.close(ctx)

			model, err := config.Load(ctx, a.cfg.ConfigPath)
			if err != nil {
				a.logger.Error("Reload failed, keeping previous configuration.", "error", err)
				model = previous
			}
			rt, err = a.buildRuntime(ctx, model)
			if err != nil {
				return fmt.Errorf("failed to rebuild after reload: %w", err)
			}
		}
	}
}

// runOnce polls every printer a single time, fanning each snapshot out to
// the sinks, then exits. Useful for cron-style setups and smoke tests.
func (a *App) runOnce(ctx context.Context, rt *runtime) error {
	a.setCurrent(rt.model, rt.fleet)
	for _, poller := range rt.fleet.Pollers() {
		poller.Poll(ctx)
	}
	return nil
}

// runDiscovery scans the requested network and prints what it finds.
func (a *App) runDiscovery(ctx context.Context) error {
	results, err := discovery.Scan(ctx, a.cfg.DiscoverCIDR, discovery.Options{})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(a.outW, "No printers found.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(a.outW, "%s\t%s\t%s\t%s\n", r.Host, r.Info.Model, r.Info.Serial, r.Info.Firmware)
	}
	return nil
}
