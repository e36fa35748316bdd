// ============================================================================
// Job Record (C2)
// ============================================================================
//
// Package: internal/worker
// File: record.go
// Purpose: C2 from spec.md §3 — the per-job runtime handle: name, dir,
// executor, timer, thread-of-control.
//
// Lifecycle (spec.md §3): created in prepare; runner started in run_job;
// transitions to "stopping" on stop_job; destroyed by clear_job, which
// waits for the runner to terminate, reads elapsed time, and removes the
// record from the running set.
//
// ============================================================================

package worker

import (
	"sync"
	"time"

	"github.com/hiveworks/fleetd/pkg/types"
)

// recordState tracks where a JobRecord sits in its lifecycle, for
// diagnostics and to reject out-of-order calls (run_job before the runner
// exists, a second run_job on an already-running record).
type recordState int

const (
	stateLoaded recordState = iota
	stateRunning
	stateStopping
)

// Record is C2: a job's runtime handle.
type Record struct {
	Name       types.JobName
	WorkingDir string
	JobOffset  int
	Executor   Executor

	mu      sync.Mutex
	state   recordState
	started time.Time
	done    chan struct{} // closed when the runner goroutine returns
	wg      sync.WaitGroup
}

// NewRecord builds a Record in the "loaded" state — prepared but not yet
// running.
func NewRecord(name types.JobName, workingDir string, jobOffset int, executor Executor) *Record {
	return &Record{
		Name:       name,
		WorkingDir: workingDir,
		JobOffset:  jobOffset,
		Executor:   executor,
		state:      stateLoaded,
		done:       make(chan struct{}),
	}
}

// Start starts the runner goroutine and the clock; returns false if the
// record is already running (Testable Property 2: at-most-one runner per
// name — the second concurrent run_job call is serialized by this lock and
// returns false).
func (r *Record) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateLoaded {
		return false
	}
	r.state = stateRunning
	r.started = time.Now()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Executor.Run()
		close(r.done)
	}()
	return true
}

// Stop signals the executor to cease accepting new work. Advisory; it does
// not wait for the runner to exit (that's ClearAndElapsed's job).
func (r *Record) Stop() {
	r.mu.Lock()
	if r.state == stateRunning {
		r.state = stateStopping
	}
	r.mu.Unlock()
	r.Executor.StopRunning()
}

// ClearAndElapsed joins the runner (forcing it to stop first if it hasn't
// been already) and returns the elapsed time since Start, per spec.md's
// "clock (monotonic stopwatch started at run_job; read once at clear)".
func (r *Record) ClearAndElapsed() time.Duration {
	r.Executor.StopRunning()
	r.wg.Wait()
	return time.Since(r.started)
}

// IsRunning reports whether Start has succeeded. ClearAndElapsed does not
// change the state, so a cleared record still reports true.
func (r *Record) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRunning || r.state == stateStopping
}
