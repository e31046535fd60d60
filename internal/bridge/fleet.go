package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/history"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/sink"
	"github.com/vk/monoxbridge/internal/uartwifi"
)

// pruneInterval is how often the retention window is enforced on the
// history store.
const pruneInterval = time.Hour

// Options wires a Fleet's dependencies. Clock defaults to the wall clock;
// Store may be nil when history is disabled.
type Options struct {
	Clock     clock.Clock
	Sinks     []sink.Sink
	Store     *history.Store
	Retention time.Duration
}

// Fleet owns one poller per enabled printer and the shared fan-out to
// sinks and history.
type Fleet struct {
	clock     clock.Clock
	sinks     []sink.Sink
	store     *history.Store
	retention time.Duration
	pollers   []*Poller
}

// NewFleet builds a fleet for every enabled printer in the model.
func NewFleet(model *config.Model, opts Options) *Fleet {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	f := &Fleet{
		clock:     clk,
		sinks:     opts.Sinks,
		store:     opts.Store,
		retention: opts.Retention,
	}
	for _, printer := range model.Enabled() {
		client := uartwifi.NewClient(printer.Host, printer.Port)
		f.pollers = append(f.pollers, newPoller(printer, client, clk, f.fanOut))
	}
	return f
}

// Pollers returns the fleet's pollers, one per enabled printer.
func (f *Fleet) Pollers() []*Poller {
	return f.pollers
}

// Run starts every poller plus the history prune loop and blocks until the
// context is cancelled and all of them have stopped.
func (f *Fleet) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Fleet starting.", "printers", len(f.pollers), "sinks", len(f.sinks))

	var wg sync.WaitGroup
	for _, poller := range f.pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(poller)
	}

	if f.store != nil && f.retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pruneLoop(ctx)
		}()
	}

	wg.Wait()
	logger.Info("Fleet stopped.")
}

// Snapshots returns the latest snapshot per printer. Printers without
// contact yet are absent.
func (f *Fleet) Snapshots() map[string]*sensors.Snapshot {
	snaps := make(map[string]*sensors.Snapshot, len(f.pollers))
	for _, poller := range f.pollers {
		if last := poller.Last(); last != nil {
			snaps[poller.Printer().Name] = last
		}
	}
	return snaps
}

// fanOut delivers a snapshot to every sink and the history store. A
// failing sink only loses its own copy.
func (f *Fleet) fanOut(ctx context.Context, snap *sensors.Snapshot) {
	logger := ctxlog.FromContext(ctx).With("printer", snap.Printer.Name)
	for _, s := range f.sinks {
		if err := s.Publish(ctx, snap); err != nil {
			logger.Warn("Sink publish failed.", "sink", s.Name(), "error", err)
		}
	}
	if f.store != nil {
		if err := f.store.Append(ctx, snap); err != nil {
			logger.Warn("History append failed.", "error", err)
		}
	}
}

func (f *Fleet) pruneLoop(ctx context.Context) {
	ticker := f.clock.Ticker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.store.Prune(ctx, f.retention); err != nil {
				ctxlog.FromContext(ctx).Warn("History prune failed.", "error", err)
			}
		}
	}
}
