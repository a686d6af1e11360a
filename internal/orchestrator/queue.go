package orchestrator

import (
	"sync"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// RunRequest describes who asked for an orchestration run.
type RunRequest struct {
	RequestedBy string
}

// Queue is the process-wide single-slot serialization point for
// OrchestrationRuns (C7). At most one run is "current" at any time; a
// second concurrent request is rejected rather than queued behind it —
// the spec's batch pipeline is tolerant of minutes-to-hours runtime, so
// piling up requests behind a slow run would only make things worse.
type Queue struct {
	mu      sync.Mutex
	current *entity.OrchestrationRun
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// ErrAlreadyRunning is returned by TryStart when a run is already current.
var ErrAlreadyRunning = entity.ErrRunAlreadyActive

// TryStart claims the single slot for run, returning ErrAlreadyRunning if
// one is already current. Callers must call Finish when the run
// terminates, success or not.
func (q *Queue) TryStart(run *entity.OrchestrationRun) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		return ErrAlreadyRunning
	}
	q.current = run
	return nil
}

// Finish releases the slot. It is a no-op if nothing is current.
func (q *Queue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}

// CurrentRun returns the run currently occupying the slot, or nil.
func (q *Queue) CurrentRun() *entity.OrchestrationRun {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// IsRunning reports whether a run currently occupies the slot.
func (q *Queue) IsRunning() bool {
	return q.CurrentRun() != nil
}
