package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Defaults applied while translating the raw schema into the model.
const (
	DefaultPollInterval = 60 * time.Second
	DefaultRetention    = 7 * 24 * time.Hour
)

// --- HCL schema ---

// fileSchema is the top-level structure of a configuration file.
type fileSchema struct {
	HealthcheckPort *int             `hcl:"healthcheck_port,optional"`
	Printers        []*printerSchema `hcl:"printer,block"`
	Sinks           []*sinkSchema    `hcl:"sink,block"`
	History         *historySchema   `hcl:"history,block"`
}

// printerSchema is a `printer "<name>" { ... }` block.
type printerSchema struct {
	Name         string `hcl:"name,label"`
	Host         string `hcl:"host"`
	Port         int    `hcl:"port,optional"`
	PollInterval string `hcl:"poll_interval,optional"`
	Disabled     bool   `hcl:"disabled,optional"`
}

// sinkSchema is a `sink "<type>" "<name>" { ... }` block. The body is kept
// raw; the matching sink constructor decodes it.
type sinkSchema struct {
	Type string   `hcl:"type,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// historySchema is the `history { ... }` block.
type historySchema struct {
	Path      string `hcl:"path"`
	Retention string `hcl:"retention,optional"`
}

// --- Validated model ---

// Model is the validated configuration the app runs on.
type Model struct {
	HealthcheckPort int
	Printers        []*Printer
	Sinks           []*Sink
	History         *History

	// EvalContext is the context config bodies were evaluated in. Sink
	// constructors use it to decode their raw bodies.
	EvalContext *hcl.EvalContext
}

// Printer declares one device to poll.
type Printer struct {
	Name         string
	Host         string
	Port         int
	PollInterval time.Duration
	Disabled     bool
}

// Sink declares one publishing target, its body still raw HCL.
type Sink struct {
	Type string
	Name string
	Body hcl.Body
}

// History declares the local SQLite store. Nil when history is disabled.
type History struct {
	Path      string
	Retention time.Duration
}

// Enabled returns the printers that are not disabled.
func (m *Model) Enabled() []*Printer {
	var printers []*Printer
	for _, p := range m.Printers {
		if !p.Disabled {
			printers = append(printers, p)
		}
	}
	return printers
}
