// ============================================================================
// RPC-backed HeartbeatClient
// ============================================================================
//
// Package: internal/worker
// File: heartbeat_client.go
// Purpose: the concrete HeartbeatClient Node.tick dials over
// internal/transport to reach the master's register_heartbeat RPC
// (spec.md §6).
//
// ============================================================================

package worker

import (
	"context"

	"github.com/hiveworks/fleetd/internal/transport"
	"github.com/hiveworks/fleetd/pkg/types"
)

// RPCHeartbeatClient implements HeartbeatClient over a transport.Client
// dialed to the master's address.
type RPCHeartbeatClient struct {
	client transport.Client
}

// NewRPCHeartbeatClient builds a heartbeat client over an already-dialed
// transport client.
func NewRPCHeartbeatClient(client transport.Client) *RPCHeartbeatClient {
	return &RPCHeartbeatClient{client: client}
}

func (h *RPCHeartbeatClient) RegisterHeartbeat(ctx context.Context, addr types.Address) (types.FleetView, error) {
	args := struct {
		Addr types.Address `json:"addr"`
	}{Addr: addr}

	var view types.FleetView
	if err := h.client.Call(ctx, "register_heartbeat", args, &view); err != nil {
		return types.FleetView{}, err
	}
	return view, nil
}
