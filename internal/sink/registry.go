package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/hcl/v2"
)

// Registry holds the sink factories compiled into the binary.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates and initializes an empty Registry instance.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a factory for a sink type.
func (r *Registry) Register(sinkType string, factory Factory) {
	if _, exists := r.factories[sinkType]; exists {
		panic(fmt.Sprintf("sink factory for type '%s' already registered", sinkType))
	}
	slog.Debug("Registering sink factory.", "type", sinkType)
	r.factories[sinkType] = factory
}

// Build constructs a sink instance of the given type from its config block.
func (r *Registry) Build(ctx context.Context, sinkType, name string, body hcl.Body, evalCtx *hcl.EvalContext) (Sink, error) {
	factory, ok := r.factories[sinkType]
	if !ok {
		return nil, fmt.Errorf("unknown sink type %q (known: %v)", sinkType, r.Types())
	}
	return factory(ctx, name, body, evalCtx)
}

// Types lists the registered sink types, sorted for stable error messages.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
