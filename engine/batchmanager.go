package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/flowforge/agentcore/agentlog"
	"github.com/flowforge/agentcore/spec"
)

// NodeTask is one node queued for dispatch: its stage definition and the
// per-node context the worker receives. That context holds
// "dependency_results", "global_input", "agent_spec" and "memory_manager"
// from the coordinator, plus "current_agent_state" added by Prepare; the
// entries of the agent's initial state are not merged into it.
type NodeTask struct {
	Name  string
	Stage spec.Stage
	Ctx   map[string]interface{}
}

// StageResult is what a dispatched worker reports back: either a result
// value or an error, plus the (possibly mutated) agent-state snapshot
// the worker returns alongside it.
type StageResult struct {
	Name       string
	Result     interface{}
	Err        error
	AgentState interface{}
}

// dispatchable is the subset of StageWorker BatchManager needs, kept
// narrow so tests can substitute a fake without building a full worker.
type dispatchable interface {
	Execute(ctx context.Context, name string, stage spec.Stage, taskCtx map[string]interface{}) StageResult
}

// BatchManager tracks the set of nodes currently dispatched, their
// contexts, the accumulating temp results, and the pending set.
type BatchManager struct {
	logger agentlog.Logger

	mu      sync.Mutex
	tasks   map[string]NodeTask
	pending map[string]bool
	temp    map[string]interface{}
}

// NewBatchManager creates an empty BatchManager.
func NewBatchManager(logger agentlog.Logger) *BatchManager {
	if logger == nil {
		logger = agentlog.NoOpLogger{}
	}
	return &BatchManager{logger: logger}
}

// Prepare materializes the batch: each task's Ctx gets "current_agent_state"
// overlaid with the coordinator's state at dispatch time.
func (b *BatchManager) Prepare(nodes []NodeTask, agentState interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tasks = make(map[string]NodeTask, len(nodes))
	b.pending = make(map[string]bool, len(nodes))
	b.temp = map[string]interface{}{}

	for _, n := range nodes {
		if n.Ctx == nil {
			n.Ctx = map[string]interface{}{}
		}
		n.Ctx["current_agent_state"] = agentState
		b.tasks[n.Name] = n
		b.pending[n.Name] = true
	}
}

// Dispatch asynchronously delivers an execute command to each task's
// worker, calling onResult exactly once per node (or skipping a node, with
// a log line, if no worker is registered for it — the coordinator's
// error path observes the skip through the pending set never emptying
// for that node and must be driven to fail by the caller if it matters).
// Panics inside a worker's Execute are recovered and converted to a
// failed StageResult, the way gomind's SmartExecutor.Execute isolates a
// panicking step from the rest of the batch.
func (b *BatchManager) Dispatch(ctx context.Context, workers map[string]dispatchable, onResult func(StageResult)) {
	b.mu.Lock()
	tasks := make([]NodeTask, 0, len(b.tasks))
	for _, t := range b.tasks {
		tasks = append(tasks, t)
	}
	b.mu.Unlock()
	b.dispatchTasks(ctx, tasks, workers, onResult)
}

// DispatchNodes is Dispatch restricted to a subset of already-prepared
// nodes, used by the coordinator's retry path to re-run only the nodes an
// ActionRetry decision covers without disturbing the rest of the batch.
func (b *BatchManager) DispatchNodes(ctx context.Context, names []string, workers map[string]dispatchable, onResult func(StageResult)) {
	b.mu.Lock()
	tasks := make([]NodeTask, 0, len(names))
	for _, name := range names {
		if t, ok := b.tasks[name]; ok {
			tasks = append(tasks, t)
		}
	}
	b.mu.Unlock()
	b.dispatchTasks(ctx, tasks, workers, onResult)
}

// PendingTasks returns the NodeTasks still awaiting a result.
func (b *BatchManager) PendingTasks() []NodeTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]NodeTask, 0, len(b.pending))
	for name := range b.pending {
		if t, ok := b.tasks[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (b *BatchManager) dispatchTasks(ctx context.Context, tasks []NodeTask, workers map[string]dispatchable, onResult func(StageResult)) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		worker, ok := workers[task.Name]
		if !ok {
			b.logger.Warn("no worker registered for node; skipping dispatch", map[string]interface{}{"node": task.Name})
			continue
		}
		wg.Add(1)
		go func(t NodeTask, w dispatchable) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("stage worker panicked", map[string]interface{}{
						"node":  t.Name,
						"panic": fmt.Sprintf("%v", r),
						"stack": string(debug.Stack()),
					})
					onResult(StageResult{Name: t.Name, Err: fmt.Errorf("stage %q execution panic: %v", t.Name, r)})
				}
			}()
			onResult(w.Execute(ctx, t.Name, t.Stage, t.Ctx))
		}(task, worker)
	}
	wg.Wait()
}

// OnCompletion appends a node's result to the temp map and removes it
// from pending, returning whether the batch is now complete.
func (b *BatchManager) OnCompletion(name string, result interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.temp[name] = result
	delete(b.pending, name)
	return len(b.pending) == 0
}

// Temp returns a shallow copy of the accumulated temp results.
func (b *BatchManager) Temp() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]interface{}, len(b.temp))
	for k, v := range b.temp {
		out[k] = v
	}
	return out
}

// Clear resets the batch to empty (used on retry and after commit).
func (b *BatchManager) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = nil
	b.pending = nil
	b.temp = nil
}

// BatchStats is the snapshot BatchManager.Stats reports.
type BatchStats struct {
	Total               int
	Completed           int
	Pending             int
	CompletionPercentage float64
}

// Stats reports total/completed/pending/completion_percentage for the
// current batch.
func (b *BatchManager) Stats() BatchStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.tasks)
	completed := len(b.temp)
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return BatchStats{Total: total, Completed: completed, Pending: len(b.pending), CompletionPercentage: pct}
}
