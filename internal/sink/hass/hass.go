// Package hass publishes snapshots to a Home Assistant instance over its
// REST API. Every sensor in a snapshot becomes one entity state
// (`sensor.<prefix>_<printer>_<sensor>`), so dashboards and automations see
// the printer as a regular set of sensors.
package hass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	resty "resty.dev/v3"

	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/sink"
)

// Type is the config block label this sink registers under.
const Type = "home_assistant"

const defaultEntityPrefix = "anycubic"

// args is the sink's HCL argument schema.
type args struct {
	// URL is the Home Assistant base URL, e.g. http://homeassistant.local:8123.
	URL string `hcl:"url"`
	// Token is a long-lived access token; reference it as env.HASS_TOKEN
	// rather than inlining it.
	Token        string `hcl:"token"`
	EntityPrefix string `hcl:"entity_prefix,optional"`
	Timeout      string `hcl:"timeout,optional"`
}

type hassSink struct {
	name   string
	client *resty.Client
	prefix string
}

// stateBody is the payload of POST /api/states/<entity_id>.
type stateBody struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Register adds this sink's factory to the registry.
func Register(r *sink.Registry) {
	r.Register(Type, New)
}

// New builds a Home Assistant sink from its config block.
func New(_ context.Context, name string, body hcl.Body, evalCtx *hcl.EvalContext) (sink.Sink, error) {
	var a args
	if err := config.DecodeSinkBody(body, evalCtx, &a); err != nil {
		return nil, err
	}
	if a.URL == "" {
		return nil, fmt.Errorf("home_assistant sink %q: url must not be empty", name)
	}
	if a.Token == "" {
		return nil, fmt.Errorf("home_assistant sink %q: token must not be empty", name)
	}
	prefix := a.EntityPrefix
	if prefix == "" {
		prefix = defaultEntityPrefix
	}

	timeout := 10 * time.Second
	if a.Timeout != "" {
		parsed, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return nil, fmt.Errorf("home_assistant sink %q: timeout: %w", name, err)
		}
		timeout = parsed
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(a.URL, "/")).
		SetAuthToken(a.Token).
		SetTimeout(timeout).
		SetRetryCount(2)

	return &hassSink{name: Type + "." + name, client: client, prefix: prefix}, nil
}

func (s *hassSink) Name() string { return s.name }

// Publish pushes one entity state per sensor. Sensors without data report
// "unavailable" so Home Assistant greys the entities out between jobs.
func (s *hassSink) Publish(ctx context.Context, snap *sensors.Snapshot) error {
	logger := ctxlog.FromContext(ctx).With("sink", s.name, "printer", snap.Printer.Name)

	var failed []string
	for _, key := range sensors.Keys {
		entityID := s.entityID(snap.Printer.Name, key)
		if err := s.postState(ctx, entityID, snap, key); err != nil {
			logger.Debug("Entity update failed.", "entity_id", entityID, "error", err)
			failed = append(failed, entityID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("home assistant rejected %d of %d entity updates (first: %s)",
			len(failed), len(sensors.Keys), failed[0])
	}
	return nil
}

func (s *hassSink) postState(ctx context.Context, entityID string, snap *sensors.Snapshot, key string) error {
	body := stateBody{
		State: stateString(snap.Values[key]),
		Attributes: map[string]any{
			"friendly_name": friendlyName(snap.Printer, key),
		},
	}
	if key == sensors.KeyStatus {
		// The status entity carries the device identity so one entity is
		// enough to populate a device card.
		body.Attributes["host"] = snap.Printer.Host
		body.Attributes["model"] = snap.Printer.Model
		body.Attributes["serial_number"] = snap.Printer.Serial
		body.Attributes["sw_version"] = snap.Printer.Firmware
		body.Attributes["icon"] = "mdi:printer-3d"
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/states/" + entityID)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}

func (s *hassSink) Close() error {
	return s.client.Close()
}

// entityID builds sensor.<prefix>_<printer>_<sensor> from the printer's
// configured name, lowercased and squeezed into HA's entity id alphabet.
func (s *hassSink) entityID(printer, key string) string {
	return "sensor." + slugify(s.prefix) + "_" + slugify(printer) + "_" + key
}

func friendlyName(id sensors.Identity, key string) string {
	model := id.Model
	if model == "" {
		model = "Mono X"
	}
	// "Photon Mono X 6K status" reads long in dashboards, so the common
	// "Photon " prefix is dropped.
	model = strings.TrimPrefix(model, "Photon ")
	return model + " " + strings.ReplaceAll(key, "_", " ")
}

// stateString renders a sensor value as an HA state. Nil means the sensor
// has no data right now.
func stateString(value any) string {
	if value == nil {
		return "unavailable"
	}
	return fmt.Sprintf("%v", value)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
