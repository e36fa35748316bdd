// ============================================================================
// Counter Client (C6) - per-worker staging buffer
// ============================================================================
//
// Package: internal/counter
// File: client.go
// Purpose: C6 from spec.md §4.4 — a per-worker staging buffer paired with a
// mutex, drained into the server by sync().
//
// Grounded on cola/functions/counter.py's CounterClient: local_inc/
// global_inc/local_acc/global_acc/multi_* stage under a lock; sync() sends
// the Increment staging container via inc_merge, the Merge staging
// container via acc_merge, then resets both — either a direct call (server
// is an in-process reference) or an RPC (server is a remote address), per
// spec.md §4.4 step 2.
//
// ============================================================================

package counter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hiveworks/fleetd/internal/transport"
)

// remote abstracts "the server, as either an in-process reference or an RPC
// endpoint" — spec.md §4.4's "direct call if server is an in-process
// reference; otherwise an RPC by resolved prefix".
type remote interface {
	incMerge(ctx context.Context, staged map[string]map[string]Value) error
	accMerge(ctx context.Context, staged map[string]map[string]Value) error
}

// localRemote calls an in-process *Server directly — no RPC round trip.
type localRemote struct{ server *Server }

func (r localRemote) incMerge(_ context.Context, staged map[string]map[string]Value) error {
	return r.server.IncMerge(staged)
}

func (r localRemote) accMerge(_ context.Context, staged map[string]map[string]Value) error {
	return r.server.AccMerge(staged)
}

// rpcRemote calls a counter server over the transport, under a prefix
// matching RegisterRPC's namespacing on the server side.
type rpcRemote struct {
	client transport.Client
	prefix string
}

func (r rpcRemote) incMerge(ctx context.Context, staged map[string]map[string]Value) error {
	var reply bool
	return r.client.Call(ctx, r.prefix+"inc_merge", bulkMergeArgs{Container: staged}, &reply)
}

func (r rpcRemote) accMerge(ctx context.Context, staged map[string]map[string]Value) error {
	var reply bool
	return r.client.Call(ctx, r.prefix+"acc_merge", bulkMergeArgs{Container: staged}, &reply)
}

// Client is C6: a per-worker staging buffer.
type Client struct {
	mu  sync.Mutex // paired with the staging containers per spec.md §4.4
	inc *Container
	acc *Container

	remote remote
	log    *slog.Logger
}

// NewLocalClient builds a client that syncs directly into an in-process
// *Server (no RPC), used when the counter server runs in the same process
// as the worker issuing counter calls.
func NewLocalClient(server *Server) *Client {
	return newClient(localRemote{server: server})
}

// NewRemoteClient builds a client that syncs over the transport to a
// counter server reachable at client, namespaced under prefix.
func NewRemoteClient(client transport.Client, prefix string) *Client {
	return newClient(rpcRemote{client: client, prefix: prefix})
}

func newClient(r remote) *Client {
	return &Client{
		inc:    NewContainer(IncrementAggregator{}),
		acc:    NewContainer(MergeAggregator{}),
		remote: r,
		log:    slog.With("component", "counter.client"),
	}
}

func localGroup(addr, instanceID string) string {
	return fmt.Sprintf("%s#%s", addr, instanceID)
}

// LocalInc stages val under group "<addr>#<instance_id>" in the Increment
// container.
func (c *Client) LocalInc(addr, instanceID, item string, val float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.inc.Inc(localGroup(addr, instanceID), item, NewNumber(val))
}

// GlobalInc stages val under group "global" in the Increment container.
func (c *Client) GlobalInc(item string, val float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.inc.Inc("global", item, NewNumber(val))
}

// LocalAcc stages val under group "<addr>#<instance_id>" in the Merge
// container.
func (c *Client) LocalAcc(addr, instanceID, item string, val Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.acc.Inc(localGroup(addr, instanceID), item, val)
}

// GlobalAcc stages val under group "global" in the Merge container.
func (c *Client) GlobalAcc(item string, val Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.acc.Inc("global", item, val)
}

// MultiLocalInc applies a named bag of item->val pairs atomically under the
// mutex, all staged under group "<addr>#<instance_id>".
func (c *Client) MultiLocalInc(addr, instanceID string, items map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	group := localGroup(addr, instanceID)
	for item, val := range items {
		_ = c.inc.Inc(group, item, NewNumber(val))
	}
}

// MultiGlobalInc applies a named bag of item->val pairs atomically under
// group "global".
func (c *Client) MultiGlobalInc(items map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for item, val := range items {
		_ = c.inc.Inc("global", item, NewNumber(val))
	}
}

// MultiLocalAcc applies a named bag of item->val pairs atomically under the
// mutex, all staged under group "<addr>#<instance_id>" in the Merge
// container.
func (c *Client) MultiLocalAcc(addr, instanceID string, items map[string]Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	group := localGroup(addr, instanceID)
	for item, val := range items {
		_ = c.acc.Inc(group, item, val)
	}
}

// MultiGlobalAcc applies a named bag of item->val pairs atomically under
// group "global" in the Merge container.
func (c *Client) MultiGlobalAcc(items map[string]Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for item, val := range items {
		_ = c.acc.Inc("global", item, val)
	}
}

// GetLocalInc reads the local staging buffer only — never a remote call —
// per spec.md §4.4 and Testable Property 7 (staging isolation).
func (c *Client) GetLocalInc(addr, instanceID, item string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.getInc(localGroup(addr, instanceID), item)
	return v, ok
}

// GetGlobalInc reads the "global" row of the local Increment staging buffer.
func (c *Client) GetGlobalInc(item string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getInc("global", item)
}

func (c *Client) getInc(group, item string) (Value, bool) {
	items := c.inc.GetGroup(group)
	v, ok := items[item]
	return v, ok
}

// GetLocalAcc reads the local staging buffer only, Merge container.
func (c *Client) GetLocalAcc(addr, instanceID, item string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getAcc(localGroup(addr, instanceID), item)
}

// GetGlobalAcc reads the "global" row of the local Merge staging buffer.
func (c *Client) GetGlobalAcc(item string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getAcc("global", item)
}

func (c *Client) getAcc(group, item string) (Value, bool) {
	items := c.acc.GetGroup(group)
	v, ok := items[item]
	return v, ok
}

// Sync is the periodic drain described in spec.md §4.4:
//  1. Acquire the mutex.
//  2. Send the Increment staging container via inc_merge.
//  3. Send the Merge staging container via acc_merge.
//  4. Reset both staging containers to empty.
//  5. Release the mutex.
//
// Per the Open Question resolved in DESIGN.md: this is best-effort, not
// atomic across the two merges. If inc_merge succeeds and acc_merge fails
// (or vice versa), the side that succeeded is applied server-side and BOTH
// staging containers are still cleared — re-staging on the client's next
// tick cannot distinguish "never sent" from "sent but server never heard
// back", so holding onto the failed side's data would risk the double-count
// spec.md §7 already accepts as a documented weakness of the Merge path,
// without actually guaranteeing recovery of the failed side.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	incErr := c.remote.incMerge(ctx, c.inc.Snapshot())
	if incErr != nil {
		c.log.Warn("inc_merge failed", "err", incErr)
	}
	accErr := c.remote.accMerge(ctx, c.acc.Snapshot())
	if accErr != nil {
		c.log.Warn("acc_merge failed", "err", accErr)
	}

	c.inc.Reset()
	c.acc.Reset()

	if incErr != nil {
		return incErr
	}
	return accErr
}
