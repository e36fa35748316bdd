// ============================================================================
// Worker Node RPC surface
// ============================================================================
//
// Package: internal/worker
// File: rpc.go
// Purpose: wires Node's lifecycle operations onto a transport.Server, the
// same way internal/master.RegisterRPC wires the master's registry —
// spec.md §6's worker RPC surface is unprefixed (only the counter subsystem
// uses prefix-namespaced registration, per spec.md §4.3).
//
// ============================================================================

package worker

import (
	"context"
	"time"

	"github.com/hiveworks/fleetd/internal/transport"
	"github.com/hiveworks/fleetd/pkg/types"
)

type prepareArgs struct {
	JobName   string            `json:"job_name"`
	Unzip     bool              `json:"unzip"`
	Overwrite bool              `json:"overwrite"`
	Settings  map[string]string `json:"settings"`
}

type jobNameArgs struct {
	JobName string `json:"job_name"`
}

type addrArgs struct {
	Addr string `json:"addr"`
}

type clearJobReply struct {
	Elapsed float64 `json:"elapsed"`
	OK      bool    `json:"ok"`
}

// RegisterRPC binds Node's RPC-exposed operations onto srv, unprefixed.
func (n *Node) RegisterRPC(srv transport.Server) {
	srv.Register("prepare", n.handlePrepare)
	srv.Register("run_job", n.handleRunJob)
	srv.Register("has_job", n.handleHasJob)
	srv.Register("stop_job", n.handleStopJob)
	srv.Register("clear_job", n.handleClearJob)
	srv.Register("pack_job_error", n.handlePackJobError)
	srv.Register("add_node", n.handleAddNode)
	srv.Register("remove_node", n.handleRemoveNode)
	srv.Register("shutdown", n.handleShutdown)
}

func (n *Node) handlePrepare(payload []byte) ([]byte, error) {
	var args prepareArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	ok, err := n.Prepare(types.JobName(args.JobName), PrepareOptions{
		Unzip:     args.Unzip,
		Overwrite: args.Overwrite,
		Settings:  args.Settings,
	})
	if err != nil {
		return nil, err
	}
	return encodeReply(ok)
}

func (n *Node) handleRunJob(payload []byte) ([]byte, error) {
	var args jobNameArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	return encodeReply(n.RunJob(types.JobName(args.JobName)))
}

func (n *Node) handleHasJob(payload []byte) ([]byte, error) {
	var args jobNameArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	return encodeReply(n.HasJob(types.JobName(args.JobName)))
}

func (n *Node) handleStopJob(payload []byte) ([]byte, error) {
	var args jobNameArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	n.StopJob(types.JobName(args.JobName))
	return encodeReply(true)
}

func (n *Node) handleClearJob(payload []byte) ([]byte, error) {
	var args jobNameArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	elapsed, ok := n.ClearJob(types.JobName(args.JobName))
	return encodeReply(clearJobReply{Elapsed: elapsed, OK: ok})
}

func (n *Node) handlePackJobError(payload []byte) ([]byte, error) {
	var args jobNameArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n.PackJobError(ctx, types.JobName(args.JobName))
	return encodeReply(true)
}

func (n *Node) handleAddNode(payload []byte) ([]byte, error) {
	var args addrArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	n.AddNode(types.Address(args.Addr))
	return encodeReply(true)
}

func (n *Node) handleRemoveNode(payload []byte) ([]byte, error) {
	var args addrArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	n.RemoveNode(types.Address(args.Addr))
	return encodeReply(true)
}

func (n *Node) handleShutdown(_ []byte) ([]byte, error) {
	n.Shutdown()
	return encodeReply(true)
}
