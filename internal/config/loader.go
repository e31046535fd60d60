package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/fsutil"
)

// Load reads configuration from each path (a single .hcl file or a
// directory of them), merges the files, and returns the validated model.
func Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var filePaths []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config path %q: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("scanning %q: %w", path, err)
			}
			filePaths = append(filePaths, found...)
		} else {
			filePaths = append(filePaths, path)
		}
	}
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Configuration files resolved.", "count", len(filePaths))

	parser := hclparse.NewParser()
	var files []*hcl.File
	for _, filePath := range filePaths {
		file, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", filePath, diags)
		}
		files = append(files, file)
	}

	evalCtx := newEvalContext()
	var raw fileSchema
	if diags := gohcl.DecodeBody(hcl.MergeFiles(files), evalCtx, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode configuration: %w", diags)
	}

	model, err := translate(&raw, evalCtx)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.",
		"printers", len(model.Printers), "sinks", len(model.Sinks), "history", model.History != nil)
	return model, nil
}

// newEvalContext exposes the process environment as an `env` object so
// secrets like API tokens stay out of the config file.
func newEvalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			env[key] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// translate converts the raw schema into the validated model.
func translate(raw *fileSchema, evalCtx *hcl.EvalContext) (*Model, error) {
	model := &Model{EvalContext: evalCtx}

	if raw.HealthcheckPort != nil {
		model.HealthcheckPort = *raw.HealthcheckPort
	}

	seen := map[string]bool{}
	for _, p := range raw.Printers {
		if p.Host == "" {
			return nil, fmt.Errorf("printer %q: host must not be empty", p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("printer %q declared more than once", p.Name)
		}
		seen[p.Name] = true

		interval, err := optionalDuration(p.PollInterval, DefaultPollInterval)
		if err != nil {
			return nil, fmt.Errorf("printer %q: poll_interval: %w", p.Name, err)
		}
		model.Printers = append(model.Printers, &Printer{
			Name:         p.Name,
			Host:         p.Host,
			Port:         p.Port,
			PollInterval: interval,
			Disabled:     p.Disabled,
		})
	}
	if len(model.Printers) == 0 {
		return nil, fmt.Errorf("configuration declares no printers")
	}

	seenSinks := map[string]bool{}
	for _, s := range raw.Sinks {
		key := s.Type + "." + s.Name
		if seenSinks[key] {
			return nil, fmt.Errorf("sink %q declared more than once", key)
		}
		seenSinks[key] = true
		model.Sinks = append(model.Sinks, &Sink{Type: s.Type, Name: s.Name, Body: s.Body})
	}

	if raw.History != nil {
		if raw.History.Path == "" {
			return nil, fmt.Errorf("history: path must not be empty")
		}
		retention, err := optionalDuration(raw.History.Retention, DefaultRetention)
		if err != nil {
			return nil, fmt.Errorf("history: retention: %w", err)
		}
		model.History = &History{Path: raw.History.Path, Retention: retention}
	}

	return model, nil
}

func optionalDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

// DecodeSinkBody decodes a sink block's raw body into the sink's own
// argument struct, evaluating expressions (including `env.*` references)
// in the model's context.
func DecodeSinkBody(body hcl.Body, evalCtx *hcl.EvalContext, target any) error {
	if diags := gohcl.DecodeBody(body, evalCtx, target); diags.HasErrors() {
		return fmt.Errorf("failed to decode sink arguments: %w", diags)
	}
	return nil
}
