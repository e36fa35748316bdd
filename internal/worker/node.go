// ============================================================================
// Worker Node (C3) - RPC-exposed job lifecycle + heartbeat loop
// ============================================================================
//
// Package: internal/worker
// File: node.go
// Purpose: C3 from spec.md §4.1 — the worker's RPC-exposed surface
// (prepare/run_job/has_job/stop_job/clear_job/pack_job_error/add_node/
// remove_node/shutdown) plus the background heartbeat loop.
//
// Grounded on cola/cluster/worker.py's Worker class and on the teacher's
// internal/worker/worker_pool.go for the stopCh + sync.WaitGroup + select
// concurrency idiom used by the heartbeat loop (SPEC_FULL §5's
// implementation note).
//
// ============================================================================

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hiveworks/fleetd/internal/jobdesc"
	"github.com/hiveworks/fleetd/internal/transport"
	"github.com/hiveworks/fleetd/pkg/types"
)

// HeartbeatInterval is fixed at 20 seconds, per spec.md §6.
const HeartbeatInterval = 20 * time.Second

// ExecutorFactory constructs the inner Job for one prepare() call; real
// deployments bind this to whatever turns a job directory + settings into
// a live Executor. SPEC_FULL's NoopExecutor is the default stand-in.
type ExecutorFactory func(ctx *Context, desc jobdesc.Descriptor, jobDir, runDir string, jobOffset int) Executor

// Node is C3: the worker's lifecycle engine.
type Node struct {
	ctx *Context

	fileClient transport.FileTransportClient
	masterAddr types.Address
	heartbeat  HeartbeatClient
	newExec    ExecutorFactory

	mu      sync.Mutex // guards running, per spec.md §5 "running_jobs map"
	running map[types.JobName]*Record

	stopCh         chan struct{}
	wg             sync.WaitGroup
	heartbeatOnce  sync.Once
	heartbeatDone  chan struct{}
	heartbeatStart bool

	log *slog.Logger
}

// HeartbeatClient is the Master RPC consumed by workers (spec.md §6):
// register_heartbeat(worker_addr) -> the current fleet roster.
type HeartbeatClient interface {
	RegisterHeartbeat(ctx context.Context, addr types.Address) (types.FleetView, error)
}

// NodeConfig bundles Node's construction-time dependencies.
type NodeConfig struct {
	Context     *Context
	MasterAddr  types.Address
	FileClient  transport.FileTransportClient
	Heartbeat   HeartbeatClient
	NewExecutor ExecutorFactory
}

// NewNode builds a worker node. newExecutor defaults to a NoopExecutor
// factory if cfg.NewExecutor is nil.
func NewNode(cfg NodeConfig) *Node {
	factory := cfg.NewExecutor
	if factory == nil {
		factory = func(*Context, jobdesc.Descriptor, string, string, int) Executor {
			return NewNoopExecutor(NoopExecutorConfig{})
		}
	}
	return &Node{
		ctx:           cfg.Context,
		masterAddr:    cfg.MasterAddr,
		fileClient:    cfg.FileClient,
		heartbeat:     cfg.Heartbeat,
		newExec:       factory,
		running:       make(map[types.JobName]*Record),
		stopCh:        make(chan struct{}),
		heartbeatDone: make(chan struct{}),
		log:           slog.With("component", "worker.node", "addr", string(cfg.Context.Addr)),
	}
}

// PrepareOptions controls prepare()'s unzip/overwrite/settings behavior,
// per spec.md §4.1.
type PrepareOptions struct {
	Unzip     bool
	Overwrite bool
	Settings  map[string]string
}

// Prepare implements spec.md §4.1's prepare algorithm.
func (n *Node) Prepare(name types.JobName, opts PrepareOptions) (bool, error) {
	jobDir := n.ctx.JobDir(name)

	if opts.Unzip {
		if err := os.RemoveAll(jobDir); err != nil {
			return false, fmt.Errorf("worker: removing existing job dir %s: %w", jobDir, err)
		}
		zipPath := n.ctx.ZipPath(name)
		if err := transport.Unzip(zipPath, n.ctx.JobsDir()); err != nil {
			n.log.Warn("unzip failed", "job", name, "err", err)
			return false, nil
		}
	}

	if _, err := os.Stat(jobDir); err != nil {
		// step 2: job directory absent after unzip — this worker is not a
		// participant in this job.
		return false, nil
	}

	desc, err := jobdesc.Load(jobDir, opts.Settings)
	if err != nil {
		return false, fmt.Errorf("worker: loading job descriptor for %s: %w", name, err)
	}

	jobOffset := n.ctx.JobOffset()

	runDir, err := n.selectRunDir(name, opts.Overwrite, desc.Clear && n.ctx.LocalMode)
	if err != nil {
		return false, fmt.Errorf("worker: selecting run dir for %s: %w", name, err)
	}

	executor := n.newExec(n.ctx, desc, jobDir, runDir, jobOffset)
	record := NewRecord(name, runDir, jobOffset, executor)

	n.mu.Lock()
	n.running[name] = record
	n.mu.Unlock()

	return true, nil
}

// selectRunDir implements step 5 of prepare(): overwrite, or the
// descriptor's clear flag while the worker is in local mode, removes a
// pre-existing run dir; otherwise a non-colliding suffix is chosen (Open
// Question resolved in DESIGN.md: overwrite=false with a colliding
// running_jobs name still replaces the map entry — only the directory gets
// a fresh suffix). clearInLocalMode is the caller's already-gated
// "desc.Clear && ctx.LocalMode" per spec.md's "if ... we are in local mode".
func (n *Node) selectRunDir(name types.JobName, overwrite, clearInLocalMode bool) (string, error) {
	base := n.ctx.RunDir(name)

	if overwrite || clearInLocalMode {
		if err := os.RemoveAll(base); err != nil {
			return "", err
		}
		if err := os.MkdirAll(base, 0755); err != nil {
			return "", err
		}
		return base, nil
	}

	if _, err := os.Stat(base); os.IsNotExist(err) {
		if err := os.MkdirAll(base, 0755); err != nil {
			return "", err
		}
		return base, nil
	}

	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s.%d", base, suffix)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.MkdirAll(candidate, 0755); err != nil {
				return "", err
			}
			return candidate, nil
		}
	}
}

// RunJob starts the record's runner; returns false if no record is
// registered under name, or if one is already running (Testable
// Property 2).
func (n *Node) RunJob(name types.JobName) bool {
	record, ok := n.lookup(name)
	if !ok {
		return false
	}
	return record.Start()
}

// HasJob reports whether name is registered, from the end of a successful
// Prepare until ClearJob returns (Testable Property 1).
func (n *Node) HasJob(name types.JobName) bool {
	_, ok := n.lookup(name)
	return ok
}

// StopJob signals the named executor to stop accepting new work; a no-op
// if name isn't registered (spec.md §7 "missing precondition... no-op; do
// not raise").
func (n *Node) StopJob(name types.JobName) {
	record, ok := n.lookup(name)
	if !ok {
		return
	}
	record.Stop()
}

// ClearJob joins the runner, removes the record, and returns elapsed
// seconds. Returns (0, false) if name isn't registered.
func (n *Node) ClearJob(name types.JobName) (float64, bool) {
	record, ok := n.lookup(name)
	if !ok {
		return 0, false
	}

	elapsed := record.ClearAndElapsed()

	n.mu.Lock()
	delete(n.running, name)
	n.mu.Unlock()

	return elapsed.Seconds(), true
}

// PackJobError zips the job's error directory and pushes it to the master,
// naming the bundle exactly as the original does:
// "<ip_key>_<job>_errors.zip" (SPEC_FULL §4.7). Push failures are logged
// and swallowed per spec.md §7.
func (n *Node) PackJobError(ctx context.Context, name types.JobName) {
	errDir := n.ctx.RunDir(name) + "/errors"
	if _, err := os.Stat(errDir); err != nil {
		return
	}

	if err := os.MkdirAll(n.ctx.ZipDir(), 0755); err != nil {
		n.log.Warn("creating zip dir failed", "job", name, "err", err)
		return
	}
	archivePath := n.ctx.ErrorZipPath(name)
	if err := transport.ZipDir(errDir, archivePath); err != nil {
		n.log.Warn("packing job error failed", "job", name, "err", err)
		return
	}

	if n.fileClient == nil {
		return
	}
	if err := n.fileClient.SendFile(ctx, string(n.masterAddr), archivePath); err != nil {
		n.log.Warn("pushing job error bundle failed", "job", name, "err", err)
	}
}

// AddNode updates the fleet view and forwards the change to every running
// executor.
func (n *Node) AddNode(addr types.Address) {
	n.ctx.AddAddr(addr)
	n.forEachRunning(func(r *Record) { r.Executor.AddNode(addr) })
}

// RemoveNode updates the fleet view and forwards the change to every
// running executor.
func (n *Node) RemoveNode(addr types.Address) {
	n.ctx.RemoveAddr(addr)
	n.forEachRunning(func(r *Record) { r.Executor.RemoveNode(addr) })
}

func (n *Node) forEachRunning(fn func(*Record)) {
	n.mu.Lock()
	records := make([]*Record, 0, len(n.running))
	for _, r := range n.running {
		records = append(records, r)
	}
	n.mu.Unlock()

	for _, r := range records {
		fn(r)
	}
}

func (n *Node) lookup(name types.JobName) (*Record, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.running[name]
	return r, ok
}

// StartHeartbeat starts the background heartbeat loop, calling
// register_heartbeat every HeartbeatInterval and replacing the fleet view
// with the reply (spec.md §4.1 "Heartbeat loop"). Safe to call at most
// once; later calls are no-ops.
func (n *Node) StartHeartbeat() {
	n.heartbeatOnce.Do(func() {
		n.heartbeatStart = true
		n.wg.Add(1)
		go n.heartbeatLoop()
	})
}

func (n *Node) heartbeatLoop() {
	defer n.wg.Done()
	defer close(n.heartbeatDone)

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.tick()
		}
	}
}

func (n *Node) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), HeartbeatInterval)
	defer cancel()

	view, err := n.heartbeat.RegisterHeartbeat(ctx, n.ctx.Addr)
	if err != nil {
		// Transient network failure: retry on the next tick, per spec.md
		// §7's error taxonomy.
		n.log.Warn("heartbeat failed", "err", err)
		return
	}
	n.ctx.ReplaceFleetView(view)
}

// Shutdown implements spec.md §4.1's exact shutdown ordering:
//  1. If the heartbeat was never started, return.
//  2. For each running JobRecord, shut down its executor and join its
//     runner.
//  3. (per-worker manager shutdown is out of scope for this repo; there is
//     no separate manager object to close.)
//  4. Set the stop-event and join the heartbeat loop.
//  5. Shut down the RPC server (the caller's responsibility — Node only
//     owns the job lifecycle and heartbeat, not the transport.Server).
func (n *Node) Shutdown() {
	if !n.heartbeatStart {
		return
	}

	n.forEachRunning(func(r *Record) {
		r.Executor.Shutdown()
		r.ClearAndElapsed()
	})

	close(n.stopCh)
	n.wg.Wait()
}
