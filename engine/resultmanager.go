package engine

import "sync"

// ResultManager accumulates per-node results for the current run plus an
// append-only archive of prior runs, so stateful agents can re-enter
// planning without losing what a previous execution produced.
type ResultManager struct {
	mu      sync.RWMutex
	current map[string]interface{}
	history []map[string]interface{}
}

// NewResultManager creates an empty ResultManager.
func NewResultManager() *ResultManager {
	return &ResultManager{current: map[string]interface{}{}}
}

// Add records a single node's result in the current map, overwriting any
// prior value for that name.
func (r *ResultManager) Add(name string, result interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[name] = result
}

// CommitBatch merges a completed batch's temp results into current. On a
// name conflict the incoming batch value wins ("later wins"), which only
// arises under explicit retry semantics.
func (r *ResultManager) CommitBatch(batch map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, result := range batch {
		r.current[name] = result
	}
}

// Get returns a node's result and whether it was present.
func (r *ResultManager) Get(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.current[name]
	return v, ok
}

// All returns a shallow copy of the current result map.
func (r *ResultManager) All() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]interface{}, len(r.current))
	for k, v := range r.current {
		out[k] = v
	}
	return out
}

// CompletedCount returns the number of nodes with a current result.
func (r *ResultManager) CompletedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.current)
}

// HasAll reports whether every name in names has a current result.
func (r *ResultManager) HasAll(names []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range names {
		if _, ok := r.current[n]; !ok {
			return false
		}
	}
	return true
}

// ArchiveCurrent pushes the current map onto the history list and clears
// it, used when a stateful agent accepts a new inbound message after
// completing a prior execution (idle).
func (r *ResultManager) ArchiveCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, r.current)
	r.current = map[string]interface{}{}
}

// History returns the archived result maps in the order they were
// archived (oldest first).
func (r *ResultManager) History() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]interface{}, len(r.history))
	copy(out, r.history)
	return out
}
