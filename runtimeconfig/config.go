// Package runtimeconfig holds the coordinator/engine's tunables: poll
// interval, default tool-round budget, and execution timeouts. It
// layers defaults -> environment variables -> functional options, the
// way gomind's core.Config does (explicit os.Getenv reads, not
// reflection over struct tags). A YAML file of the same shape can be
// loaded through the WithFile option, which applies on top of defaults
// and env at its position among the other functional options.
package runtimeconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Options holds the runtime's tunables. New applies the default -> env
// -> option layering. Of these fields the engine package reads only
// PollInterval (in Execute); the others are validated and carried here
// but not read by the engine.
type Options struct {
	// PollInterval is how often the synchronous Execute wrapper polls
	// the coordinator for completion.
	PollInterval time.Duration

	// DefaultTimeout is a default execution timeout. Execute does not
	// read it; it always uses the timeout its caller passes.
	DefaultTimeout time.Duration

	// MaxToolIterations is the tool-round budget for a StageWorker's
	// LLM-tool loop, five by default. NewStageWorker takes its bound as
	// an argument and does not read this field.
	MaxToolIterations int

	// BatchDispatchConcurrency is a dispatch-concurrency setting.
	// BatchManager does not read it and dispatches every node of a batch
	// concurrently.
	BatchDispatchConcurrency int
}

func defaults() Options {
	return Options{
		PollInterval:             50 * time.Millisecond,
		DefaultTimeout:           30 * time.Second,
		MaxToolIterations:        5,
		BatchDispatchConcurrency: 8,
	}
}

// Option mutates Options during New.
type Option func(*Options)

func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Options) { o.DefaultTimeout = d }
}

func WithMaxToolIterations(n int) Option {
	return func(o *Options) { o.MaxToolIterations = n }
}

func WithBatchDispatchConcurrency(n int) Option {
	return func(o *Options) { o.BatchDispatchConcurrency = n }
}

const (
	envPollInterval      = "AGENTCORE_POLL_INTERVAL"
	envDefaultTimeout    = "AGENTCORE_DEFAULT_TIMEOUT"
	envMaxToolIterations = "AGENTCORE_MAX_TOOL_ITERATIONS"
	envBatchConcurrency  = "AGENTCORE_BATCH_DISPATCH_CONCURRENCY"
)

func applyEnv(o *Options) error {
	if v := os.Getenv(envPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("runtimeconfig: %s: %w", envPollInterval, err)
		}
		o.PollInterval = d
	}
	if v := os.Getenv(envDefaultTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("runtimeconfig: %s: %w", envDefaultTimeout, err)
		}
		o.DefaultTimeout = d
	}
	if v := os.Getenv(envMaxToolIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("runtimeconfig: %s: %w", envMaxToolIterations, err)
		}
		o.MaxToolIterations = n
	}
	if v := os.Getenv(envBatchConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("runtimeconfig: %s: %w", envBatchConcurrency, err)
		}
		o.BatchDispatchConcurrency = n
	}
	return nil
}

// New builds Options by layering defaults, then environment variables,
// then the supplied functional options (highest priority).
func New(opts ...Option) (Options, error) {
	o := defaults()
	if err := applyEnv(&o); err != nil {
		return Options{}, err
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxToolIterations <= 0 {
		return Options{}, fmt.Errorf("runtimeconfig: max_tool_iterations must be positive, got %d", o.MaxToolIterations)
	}
	if o.BatchDispatchConcurrency <= 0 {
		return Options{}, fmt.Errorf("runtimeconfig: batch_dispatch_concurrency must be positive, got %d", o.BatchDispatchConcurrency)
	}
	return o, nil
}
