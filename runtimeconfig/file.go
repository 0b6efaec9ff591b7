package runtimeconfig

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOptions is the YAML-file shape, using string durations so the
// file stays human-editable ("50ms", "30s") rather than raw
// nanosecond integers.
type fileOptions struct {
	PollInterval             string `yaml:"poll_interval"`
	DefaultTimeout           string `yaml:"default_timeout"`
	MaxToolIterations        int    `yaml:"max_tool_iterations"`
	BatchDispatchConcurrency int    `yaml:"batch_dispatch_concurrency"`
}

// WithFile loads path as a YAML options file and applies any fields it
// sets on top of the defaults/env layer. Like any functional option it
// runs in its position in New's call: options listed after it override
// it, options listed before it are overridden by it.
func WithFile(path string) Option {
	return func(o *Options) {
		data, err := os.ReadFile(path)
		if err != nil {
			return // absent/unreadable file is not fatal; caller still gets defaults+env
		}
		var f fileOptions
		if err := yaml.Unmarshal(data, &f); err != nil {
			return
		}
		if f.PollInterval != "" {
			if d, err := time.ParseDuration(f.PollInterval); err == nil {
				o.PollInterval = d
			}
		}
		if f.DefaultTimeout != "" {
			if d, err := time.ParseDuration(f.DefaultTimeout); err == nil {
				o.DefaultTimeout = d
			}
		}
		if f.MaxToolIterations > 0 {
			o.MaxToolIterations = f.MaxToolIterations
		}
		if f.BatchDispatchConcurrency > 0 {
			o.BatchDispatchConcurrency = f.BatchDispatchConcurrency
		}
	}
}
