// ============================================================================
// Counter Server (C5) - process-wide authoritative aggregate
// ============================================================================
//
// Package: internal/counter
// File: server.go
// Purpose: C5 from spec.md §4.3 — holds inc_counter (Increment) and
// acc_counter (Merge), exposes inc/acc/inc_merge/acc_merge/get_global over
// RPC, and persists (inc, acc) to counter.status on shutdown.
//
// Grounded on cola/functions/counter.py's CounterServer: constructor ensures
// the working directory exists and restores from counter.status if present;
// output() (here GetGlobal) reads only the increment counter's "global" row.
//
// ============================================================================

package counter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hiveworks/fleetd/internal/transport"
)

const statusFileName = "counter.status"

// Server is C5: the process-wide authoritative counter aggregate.
type Server struct {
	workingDir string
	persist    *persistenceManager

	mu  sync.Mutex // serializes inc_merge/acc_merge/inc/acc/output/save, per spec.md §4.3/§5
	inc *Container
	acc *Container

	log *slog.Logger
}

// NewServer builds a counter server rooted at workingDir, restoring from
// counter.status if one is already present (a restart after a prior
// shutdown).
func NewServer(workingDir string) (*Server, error) {
	if err := os.MkdirAll(workingDir, 0755); err != nil {
		return nil, fmt.Errorf("counter: create working dir %s: %w", workingDir, err)
	}

	s := &Server{
		workingDir: workingDir,
		persist:    newPersistenceManager(filepath.Join(workingDir, statusFileName)),
		inc:        NewContainer(IncrementAggregator{}),
		acc:        NewContainer(MergeAggregator{}),
		log:        slog.With("component", "counter.server"),
	}

	state, found, err := s.persist.Load()
	if err != nil {
		return nil, fmt.Errorf("counter: loading %s: %w", statusFileName, err)
	}
	if found {
		s.inc.Restore(state.Inc)
		s.acc.Restore(state.Acc)
		s.log.Info("restored counter state", "path", s.persist.GetPath())
	}
	return s, nil
}

// Inc implements the "inc(group, item, val=1)" RPC: a single-cell increment.
func (s *Server) Inc(group, item string, val Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inc.Inc(group, item, val)
}

// Acc implements the "acc(group, item, val)" RPC: a single-cell merge.
func (s *Server) Acc(group, item string, val Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Inc(group, item, val)
}

// IncMerge implements "inc_merge(container)": bulk merge of a staged
// Increment container, sent by CounterClient.sync.
func (s *Server) IncMerge(staged map[string]map[string]Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inc.Merge(staged)
}

// AccMerge implements "acc_merge(container)": bulk merge of a staged Merge
// container.
func (s *Server) AccMerge(staged map[string]map[string]Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Merge(staged)
}

// GetGlobal implements "get_global()": the increment counter's "global" row
// only — the original's output() never reads the merge counter.
func (s *Server) GetGlobal() map[string]Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inc.GetGroup("global")
}

// Shutdown writes (inc_container, acc_container) to counter.status in a
// single file write.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := persistedState{
		Inc: s.inc.Snapshot(),
		Acc: s.acc.Snapshot(),
	}
	if err := s.persist.Write(state); err != nil {
		return fmt.Errorf("counter: saving %s: %w", statusFileName, err)
	}
	s.log.Info("persisted counter state", "path", s.persist.GetPath())
	return nil
}

// RegisterRPC wires the five RPC handlers onto server, namespaced under
// prefix per spec.md §4.3's "prefixed per application" (the original
// computes prefix = get_rpc_prefix(app_name, FUNC_PREFIX)).
func (s *Server) RegisterRPC(srv transport.Server, prefix string) {
	srv.RegisterWithPrefix(prefix, "inc", s.handleInc)
	srv.RegisterWithPrefix(prefix, "acc", s.handleAcc)
	srv.RegisterWithPrefix(prefix, "inc_merge", s.handleIncMerge)
	srv.RegisterWithPrefix(prefix, "acc_merge", s.handleAccMerge)
	srv.RegisterWithPrefix(prefix, "get_global", s.handleGetGlobal)
}

type singleCellArgs struct {
	Group string `json:"group"`
	Item  string `json:"item"`
	Val   Value  `json:"val"`
}

type bulkMergeArgs struct {
	Container map[string]map[string]Value `json:"container"`
}

func (s *Server) handleInc(payload []byte) ([]byte, error) {
	var args singleCellArgs
	if err := decodeHandlerArgs(payload, &args); err != nil {
		return nil, err
	}
	if err := s.Inc(args.Group, args.Item, args.Val); err != nil {
		s.log.Warn("inc failed", "group", args.Group, "item", args.Item, "err", err)
		return encodeHandlerReply(false)
	}
	return encodeHandlerReply(true)
}

func (s *Server) handleAcc(payload []byte) ([]byte, error) {
	var args singleCellArgs
	if err := decodeHandlerArgs(payload, &args); err != nil {
		return nil, err
	}
	if err := s.Acc(args.Group, args.Item, args.Val); err != nil {
		s.log.Warn("acc failed", "group", args.Group, "item", args.Item, "err", err)
		return encodeHandlerReply(false)
	}
	return encodeHandlerReply(true)
}

func (s *Server) handleIncMerge(payload []byte) ([]byte, error) {
	var args bulkMergeArgs
	if err := decodeHandlerArgs(payload, &args); err != nil {
		return nil, err
	}
	if err := s.IncMerge(args.Container); err != nil {
		s.log.Warn("inc_merge failed", "err", err)
		return encodeHandlerReply(false)
	}
	return encodeHandlerReply(true)
}

func (s *Server) handleAccMerge(payload []byte) ([]byte, error) {
	var args bulkMergeArgs
	if err := decodeHandlerArgs(payload, &args); err != nil {
		return nil, err
	}
	if err := s.AccMerge(args.Container); err != nil {
		s.log.Warn("acc_merge failed", "err", err)
		return encodeHandlerReply(false)
	}
	return encodeHandlerReply(true)
}

func (s *Server) handleGetGlobal(_ []byte) ([]byte, error) {
	return encodeHandlerReply(s.GetGlobal())
}
