package engine

import (
	"sync"
	"time"
)

// ProgressInfo is the snapshot ProgressTracker.Info returns and that
// gets passed to the user's progress callback.
type ProgressInfo struct {
	Completed  int
	Total      int
	ElapsedMs  int64
	Percentage float64
}

// ProgressTracker tracks a monotonic start timestamp plus completed/total
// counts for the current run, deriving elapsed time and percentage from
// them on demand.
type ProgressTracker struct {
	mu        sync.RWMutex
	start     time.Time
	total     int
	completed int
}

// NewProgressTracker creates a tracker for a run of the given total node
// count, with its clock starting now.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{start: time.Now(), total: total}
}

// Update sets the completed count.
func (p *ProgressTracker) Update(completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = completed
}

// Info reports the current snapshot. Percentage is 0 when total is 0.
func (p *ProgressTracker) Info() ProgressInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pct := 0.0
	if p.total > 0 {
		pct = float64(p.completed) / float64(p.total) * 100
	}
	return ProgressInfo{
		Completed:  p.completed,
		Total:      p.total,
		ElapsedMs:  time.Since(p.start).Milliseconds(),
		Percentage: pct,
	}
}

// Complete reports whether completed has reached total.
func (p *ProgressTracker) Complete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.completed >= p.total
}

// Reset restarts the clock and zeroes completed, retargeting total.
func (p *ProgressTracker) Reset(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.total = total
	p.completed = 0
}
