package docpipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Progress is an immutable snapshot of a Run in flight, returned by
// ProgressTracker.Snapshot. OperationID identifies one Run/UpdateDocumentation
// call for correlation in logs, distinct from any dataset or file identity.
type Progress struct {
	OperationID string
	Total       int
	Processed   int
	Successful  int
	Failed      int
	Skipped     int
	CurrentFile string
	Errors      []string
	Done        bool
	Cancelled   bool
}

// ProgressTracker accumulates per-file outcomes under a mutex, grounded on
// the teamcontext worker's mutex-guarded WorkerStats: callers read a
// deep-copied Progress, writers never see a half-updated one.
type ProgressTracker struct {
	mu sync.Mutex
	p  Progress
}

// NewProgressTracker returns a tracker for a run of the given total size,
// stamped with a freshly generated operation id.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{p: Progress{Total: total, OperationID: uuid.NewString()}}
}

// Snapshot returns a deep copy of the current progress.
func (t *ProgressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.p
	out.Errors = append([]string(nil), t.p.Errors...)
	return out
}

func (t *ProgressTracker) setCurrentFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.CurrentFile = path
}

func (t *ProgressTracker) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Processed++
	t.p.Successful++
}

func (t *ProgressTracker) recordFailure(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Processed++
	t.p.Failed++
	t.p.Errors = append(t.p.Errors, path+": "+err.Error())
}

func (t *ProgressTracker) recordSkip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Processed++
	t.p.Skipped++
}

func (t *ProgressTracker) markCancelled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Cancelled = true
	t.p.Done = true
}

func (t *ProgressTracker) markDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Done = true
}
