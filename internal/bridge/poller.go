package bridge

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/uartwifi"
)

// offlineThreshold is how many consecutive poll failures are tolerated
// before a printer is reported offline. The boards drop off wifi for a
// poll or two all the time, so a single miss means nothing.
const offlineThreshold = 3

// Device is the slice of the uart-wifi client a poller needs.
// *uartwifi.Client satisfies it; tests substitute a scripted fake.
type Device interface {
	Status(ctx context.Context) (*uartwifi.Status, error)
	SysInfo(ctx context.Context) (*uartwifi.SysInfo, error)
}

// Poller polls one printer and owns its last known state.
type Poller struct {
	printer *config.Printer
	device  Device
	clock   clock.Clock
	publish func(ctx context.Context, snap *sensors.Snapshot)

	mu       sync.Mutex
	sysinfo  *uartwifi.SysInfo
	failures int
	last     *sensors.Snapshot
}

// newPoller wires a poller for one configured printer.
func newPoller(printer *config.Printer, device Device, clk clock.Clock,
	publish func(ctx context.Context, snap *sensors.Snapshot)) *Poller {
	return &Poller{printer: printer, device: device, clock: clk, publish: publish}
}

// Run polls immediately, then on every tick until the context is done.
func (p *Poller) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("printer", p.printer.Name)
	logger.Info("Poller starting.", "host", p.printer.Host, "interval", p.printer.PollInterval)

	ticker := p.clock.Ticker(p.printer.PollInterval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Poller stopping.")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one poll cycle and returns the snapshot it published, or
// nil when a failure was absorbed by the debounce.
func (p *Poller) Poll(ctx context.Context) *sensors.Snapshot {
	logger := ctxlog.FromContext(ctx).With("printer", p.printer.Name)

	info, err := p.ensureSysInfo(ctx)
	if err != nil {
		logger.Debug("Sysinfo fetch failed.", "error", err)
		return p.registerFailure(ctx)
	}

	status, err := p.device.Status(ctx)
	if err != nil {
		logger.Debug("Status poll failed.", "error", err)
		return p.registerFailure(ctx)
	}
	status.NormalizeUnits(info.ReportsSeconds())

	snap := sensors.FromStatus(p.identity(info), status, p.clock.Now())

	p.mu.Lock()
	p.failures = 0
	p.last = snap
	p.mu.Unlock()

	p.publish(ctx, snap)
	return snap
}

// Last returns the most recent snapshot, nil before first contact.
func (p *Poller) Last() *sensors.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Printer returns the poller's configuration.
func (p *Poller) Printer() *config.Printer {
	return p.printer
}

// ensureSysInfo fetches the identity record on first contact and again
// after the printer has been offline, since a power cycle can mean new
// firmware.
func (p *Poller) ensureSysInfo(ctx context.Context) (*uartwifi.SysInfo, error) {
	p.mu.Lock()
	cached := p.sysinfo
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	info, err := p.device.SysInfo(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.sysinfo = info
	p.mu.Unlock()
	ctxlog.FromContext(ctx).Info("Printer identified.",
		"printer", p.printer.Name, "model", info.Model, "serial", info.Serial, "firmware", info.Firmware)
	return info, nil
}

// registerFailure advances the debounce. Failures within the threshold
// keep the last snapshot; crossing it publishes an offline snapshot once
// and drops the cached identity so recovery re-identifies the device.
func (p *Poller) registerFailure(ctx context.Context) *sensors.Snapshot {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	alreadyOffline := p.last != nil && !p.last.Online
	info := p.sysinfo
	p.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("printer", p.printer.Name, "failures", failures)
	if failures <= offlineThreshold {
		logger.Debug("Poll failed, keeping last state.")
		return nil
	}
	if alreadyOffline {
		logger.Debug("Printer still offline.")
		return nil
	}

	logger.Warn("Printer declared offline.")
	snap := sensors.Offline(p.identity(info), p.clock.Now())

	p.mu.Lock()
	p.last = snap
	p.sysinfo = nil
	p.mu.Unlock()

	p.publish(ctx, snap)
	return snap
}

func (p *Poller) identity(info *uartwifi.SysInfo) sensors.Identity {
	id := sensors.Identity{Name: p.printer.Name, Host: p.printer.Host}
	if info != nil {
		id.Model = info.Model
		id.Serial = info.Serial
		id.Firmware = info.Firmware
	}
	return id
}
