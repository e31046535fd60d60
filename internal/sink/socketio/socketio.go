// Package socketio emits snapshots as socket.io events, one event per
// snapshot, for dashboards that want a live feed instead of polling the
// bridge's HTTP status endpoint.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/sink"
)

// Type is the config block label this sink registers under.
const Type = "socketio"

const connectTimeout = 15 * time.Second

// args is the sink's HCL argument schema.
type args struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

type socketioSink struct {
	name  string
	event string
	io    *socket.Socket
}

// Register adds this sink's factory to the registry.
func Register(r *sink.Registry) {
	r.Register(Type, New)
}

// New builds a socket.io sink from its config block. The connection is
// established eagerly so a bad URL fails at startup, not at first publish.
func New(ctx context.Context, name string, body hcl.Body, evalCtx *hcl.EvalContext) (sink.Sink, error) {
	var a args
	if err := config.DecodeSinkBody(body, evalCtx, &a); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("sink", Type+"."+name, "url", a.URL)

	parsedURL, err := url.Parse(a.URL)
	if err != nil {
		return nil, fmt.Errorf("socketio sink %q: failed to parse URL: %w", name, err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if a.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(a.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}

	event := a.Event
	if event == "" {
		event = "printer_status"
	}
	return &socketioSink{name: Type + "." + name, event: event, io: io}, nil
}

func (s *socketioSink) Name() string { return s.name }

// Publish emits the snapshot as one event. The payload mirrors the
// snapshot's JSON shape.
func (s *socketioSink) Publish(ctx context.Context, snap *sensors.Snapshot) error {
	if err := s.io.Emit(s.event, snap); err != nil {
		return fmt.Errorf("socket.io emit failed: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Snapshot emitted.", "sink", s.name, "event", s.event)
	return nil
}

func (s *socketioSink) Close() error {
	s.io.Disconnect()
	return nil
}
