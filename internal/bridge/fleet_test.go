package bridge_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vk/monoxbridge/internal/bridge"
	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/history"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/simulator"
	"github.com/vk/monoxbridge/internal/sink"
)

// captureSink collects snapshots; failingSink always errors.
type captureSink struct {
	mu    sync.Mutex
	snaps []*sensors.Snapshot
}

func (s *captureSink) Name() string { return "capture" }
func (s *captureSink) Publish(_ context.Context, snap *sensors.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}
func (s *captureSink) Close() error { return nil }
func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Close() error { return nil }
func (failingSink) Publish(context.Context, *sensors.Snapshot) error {
	return errors.New("boom")
}

func simulatedModel(t *testing.T, interval time.Duration) (*config.Model, *simulator.Simulator) {
	t.Helper()
	sim := simulator.New(simulator.DefaultIdentity)
	require.NoError(t, sim.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(sim.Shutdown)

	model := &config.Model{
		Printers: []*config.Printer{{
			Name:         "garage",
			Host:         sim.Addr(),
			PollInterval: interval,
		}},
	}
	return model, sim
}

// TestMain verifies no poller or simulator goroutine outlives the tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFleetRun(t *testing.T) {
	model, _ := simulatedModel(t, 20*time.Millisecond)

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	sunk := &captureSink{}
	fleet := bridge.NewFleet(model, bridge.Options{
		Sinks:     []sink.Sink{failingSink{}, sunk},
		Store:     store,
		Retention: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fleet.Run(ctx)
		close(done)
	}()

	// The first poll is immediate and subsequent ones tick; a failing
	// sink must not starve the capture sink.
	require.Eventually(t, func() bool { return sunk.count() >= 2 }, 3*time.Second, 10*time.Millisecond)

	snaps := fleet.Snapshots()
	require.Contains(t, snaps, "garage")
	assert.True(t, snaps["garage"].Online)
	assert.Equal(t, "Photon Mono X 6K", snaps["garage"].Printer.Model)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("fleet did not stop after cancellation")
	}

	// Snapshots also landed in history.
	latest, err := store.Latest(context.Background(), "garage")
	require.NoError(t, err)
	assert.Equal(t, "garage", latest.Printer.Name)
}

func TestFleetSkipsDisabledPrinters(t *testing.T) {
	model, _ := simulatedModel(t, time.Second)
	model.Printers = append(model.Printers, &config.Printer{
		Name:         "workshop",
		Host:         "10.0.0.99",
		PollInterval: time.Second,
		Disabled:     true,
	})

	fleet := bridge.NewFleet(model, bridge.Options{})
	require.Len(t, fleet.Pollers(), 1)
	assert.Equal(t, "garage", fleet.Pollers()[0].Printer().Name)
}
