package batch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Outcome is the terminal state of a single unit.
type Outcome int

const (
	// OutcomeSucceeded means the unit completed its work.
	OutcomeSucceeded Outcome = iota
	// OutcomeSkipped means the unit ended without work and without error.
	OutcomeSkipped
	// OutcomeFailed means the unit returned an error.
	OutcomeFailed
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress tracks unit outcomes of a dispatch.
// All methods are safe for concurrent use.
type Progress struct {
	totalItems int
	succeeded  int
	skipped    int
	failed     int

	startTime      time.Time
	lastUpdateTime time.Time

	mu sync.RWMutex
}

// NewProgress creates a new progress tracker for totalItems units.
func NewProgress(totalItems int) *Progress {
	now := time.Now()
	return &Progress{
		totalItems:     totalItems,
		startTime:      now,
		lastUpdateTime: now,
	}
}

// Add records one terminal unit.
func (p *Progress) Add(outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch outcome {
	case OutcomeSucceeded:
		p.succeeded++
	case OutcomeSkipped:
		p.skipped++
	case OutcomeFailed:
		p.failed++
	}
	p.lastUpdateTime = time.Now()
}

// Done returns the number of units in a terminal state.
func (p *Progress) Done() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doneUnsafe()
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percentCompleteUnsafe()
}

// IsComplete returns true once every unit is terminal.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doneUnsafe() >= p.totalItems
}

// ElapsedTime returns the time elapsed since the tracker started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// EstimatedTimeRemaining extrapolates from the average time per unit so far.
// Returns 0 before any unit has finished.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	done := p.doneUnsafe()
	if done == 0 {
		return 0
	}
	avg := time.Since(p.startTime) / time.Duration(done)
	return avg * time.Duration(p.totalItems-done)
}

// ItemsPerSecond returns the terminal-unit rate.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.itemsPerSecondUnsafe()
}

// Snapshot returns a consistent copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalItems:      p.totalItems,
		Succeeded:       p.succeeded,
		Skipped:         p.skipped,
		Failed:          p.failed,
		StartTime:       p.startTime,
		LastUpdateTime:  p.lastUpdateTime,
		PercentComplete: p.percentCompleteUnsafe(),
		ElapsedTime:     time.Since(p.startTime),
		ItemsPerSecond:  p.itemsPerSecondUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems      int
	Succeeded       int
	Skipped         int
	Failed          int
	StartTime       time.Time
	LastUpdateTime  time.Time
	PercentComplete float64
	ElapsedTime     time.Duration
	ItemsPerSecond  float64
}

// Done returns the number of terminal units in the snapshot.
func (s ProgressSnapshot) Done() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// Ratio returns completion as a 0..1 fraction. An empty dispatch is complete.
func (s ProgressSnapshot) Ratio() float64 {
	if s.TotalItems == 0 {
		return 1
	}
	return float64(s.Done()) / float64(s.TotalItems)
}

// Reset clears all counters and restarts the clock.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.succeeded = 0
	p.skipped = 0
	p.failed = 0
	p.startTime = now
	p.lastUpdateTime = now
}

// Must be called with the lock held.
func (p *Progress) doneUnsafe() int {
	return p.succeeded + p.skipped + p.failed
}

// Must be called with the lock held.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.totalItems == 0 {
		return 0
	}
	return (float64(p.doneUnsafe()) / float64(p.totalItems)) * percentMultiplier
}

// Must be called with the lock held.
func (p *Progress) itemsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.doneUnsafe()) / elapsed
}
