package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowforge/agentcore/agenterrors"
	"github.com/flowforge/agentcore/spec"
)

// Handle is the caller-facing reference to a running agent, returned by
// Start. It is the only way to reach a Coordinator's event loop from
// outside the engine package.
type Handle struct {
	c *Coordinator
}

// Start builds a Coordinator for as, runs its init callback, and enters
// the event loop asynchronously, returning a Handle immediately.
func Start(ctx context.Context, as *spec.AgentSpec, input interface{}, initialState interface{}, deps Deps) (*Handle, error) {
	c, err := NewCoordinator(as, initialState, input, deps)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return &Handle{c: c}, nil
}

// Stop terminates the underlying coordinator's event loop.
func (h *Handle) Stop() {
	h.c.Stop()
}

func (h *Handle) send(ctx context.Context, e event, timeout time.Duration) error {
	select {
	case h.c.events <- e:
		return nil
	case <-time.After(timeout):
		return agenterrors.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetResults reports the coordinator's externally-visible phase and a
// snapshot of the current run's committed results.
func (h *Handle) GetResults(ctx context.Context, timeout time.Duration) (Phase, map[string]interface{}, error) {
	reply := make(chan resultsReply, 1)
	if err := h.send(ctx, event{kind: evGetResults, replyResults: reply}, timeout); err != nil {
		return "", nil, err
	}
	select {
	case r := <-reply:
		return r.phase, r.results, nil
	case <-time.After(timeout):
		return "", nil, agenterrors.ErrTimeout
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// GetNodeResult returns a single stage's current-run result, or
// agenterrors.ErrNodeNotFound if that stage has not yet completed.
func (h *Handle) GetNodeResult(ctx context.Context, name string, timeout time.Duration) (interface{}, error) {
	reply := make(chan nodeReply, 1)
	if err := h.send(ctx, event{kind: evGetNodeResult, nodeName: name, replyNode: reply}, timeout); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		if !r.found {
			return nil, fmt.Errorf("%w: %s", agenterrors.ErrNodeNotFound, name)
		}
		return r.result, nil
	case <-time.After(timeout):
		return nil, agenterrors.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendMessage delivers an inbound message to a stateful agent sitting
// idle, re-entering planning. It fails with agenterrors.ErrNotStateful,
// agenterrors.ErrInvalidMessageFormat, or agenterrors.ErrStillProcessing.
func (h *Handle) SendMessage(ctx context.Context, message spec.Message, timeout time.Duration) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, event{kind: evMessage, message: message, replyErr: reply}, timeout); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-time.After(timeout):
		return agenterrors.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute runs an agent to completion synchronously: it starts the
// coordinator, polls GetResults at deps.Opts.PollInterval, and stops the
// coordinator before returning. It returns agenterrors.ErrTimeout if
// timeout elapses before the phase reaches completed.
func Execute(ctx context.Context, as *spec.AgentSpec, input interface{}, initialState interface{}, deps Deps, timeout time.Duration) (map[string]interface{}, error) {
	h, err := Start(ctx, as, input, initialState, deps)
	if err != nil {
		return nil, err
	}
	defer h.Stop()

	poll := deps.Opts.PollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		phase, results, err := h.GetResults(ctx, poll)
		if err != nil {
			return nil, err
		}
		if phase == PhaseCompleted {
			return results, nil
		}
		if time.Now().After(deadline) {
			return results, agenterrors.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(poll):
		}
	}
}
