// ============================================================================
// Executor - the opaque inner Job (C2's dependency)
// ============================================================================
//
// Package: internal/worker
// File: executor.go
// Purpose: spec.md §1 scopes "the inner Job executor (its internal
// pipeline, fetching, dedup, and storage)" out as external. Executor carries
// five operations: run/stop_running/add_node(addr)/remove_node(addr)/
// shutdown; there is no clear_running operation.
//
// NoopExecutor stands in for "the real Job the operator packaged into the
// zip" (SPEC_FULL §4.6) — enough to drive every worker-lifecycle test
// without inventing the crawl/fetch/dedup pipeline the spec excludes.
//
// ============================================================================

package worker

import (
	"sync"
	"time"

	"github.com/hiveworks/fleetd/pkg/types"
)

// Executor is the inner Job's control surface, per spec.md §3's JobRecord
// field list.
type Executor interface {
	// Run starts the job's unit of execution; returns once it has
	// finished (normally, or via StopRunning/Shutdown).
	Run()
	// StopRunning asks the executor to cease accepting new work; advisory,
	// not a forcible terminate (spec.md §5 "Cancellation & timeouts").
	StopRunning()
	// AddNode / RemoveNode forward a fleet membership change into the
	// executor, per spec.md §4.1's add_node/remove_node "forwards to
	// every running executor".
	AddNode(addr types.Address)
	RemoveNode(addr types.Address)
	// Shutdown terminates the executor unconditionally, used during
	// worker-wide shutdown.
	Shutdown()
}

// NoopExecutorConfig configures the stand-in executor's simulated work.
type NoopExecutorConfig struct {
	// Tick is how long Run sleeps between checking for a stop signal; the
	// executor "runs" until StopRunning or Shutdown, simulating a
	// long-lived job.
	Tick time.Duration
	// FailAfter, if > 0, makes Run return after this many ticks without
	// waiting for a stop signal — simulates an executor that fails on its
	// own, exercising pack_job_error.
	FailAfter int
}

// NoopExecutor is SPEC_FULL's stand-in for the opaque inner Job: it records
// the AddNode/RemoveNode calls it receives and loops on its Tick until told
// to stop.
type NoopExecutor struct {
	cfg NoopExecutorConfig

	mu       sync.Mutex
	stopped  bool
	nodesAdd []types.Address
	nodesDel []types.Address
	done     chan struct{}
}

// NewNoopExecutor builds a stand-in executor with cfg; a zero Tick defaults
// to 10ms so tests don't need to tune it.
func NewNoopExecutor(cfg NoopExecutorConfig) *NoopExecutor {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	return &NoopExecutor{cfg: cfg, done: make(chan struct{})}
}

func (e *NoopExecutor) Run() {
	ticks := 0
	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			ticks++
			if e.cfg.FailAfter > 0 && ticks >= e.cfg.FailAfter {
				return
			}
		}
	}
}

func (e *NoopExecutor) StopRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.done)
}

func (e *NoopExecutor) AddNode(addr types.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodesAdd = append(e.nodesAdd, addr)
}

func (e *NoopExecutor) RemoveNode(addr types.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodesDel = append(e.nodesDel, addr)
}

func (e *NoopExecutor) Shutdown() {
	e.StopRunning()
}
