// ============================================================================
// Worker Context (C1)
// ============================================================================
//
// Package: internal/worker
// File: context.go
// Purpose: C1 from spec.md §4.1/§2 — holds addresses, fleet-view, working
// dirs; the shared-by-reference object the worker node and every running
// executor read.
//
// Grounded on cola/cluster/worker.py's Worker.__init__ (working_dir/job_dir/
// zip_dir derived from ctx.addr, normalized) and the ctx.addrs/ctx.ips
// fields the heartbeat loop replaces wholesale on each tick ("publish by
// whole-sequence replacement", spec.md §5).
//
// ============================================================================

package worker

import (
	"path/filepath"
	"sync"

	"github.com/hiveworks/fleetd/pkg/types"
)

// Context is C1: the worker's identity, fleet view, and working-directory
// layout, passed by shared reference to the node and to every executor.
type Context struct {
	Addr types.Address
	IP   types.IP

	// LocalMode mirrors the original's ctx.is_local_mode: prepare() only
	// honors a job descriptor's "clear" flag (removing a pre-existing
	// per-run working dir) when this is true (spec.md §4.1 step 5). False
	// by default, matching a real distributed deployment.
	LocalMode bool

	// globalWorkingDir is "<global_working_dir>" from spec.md §6's on-disk
	// layout; every other directory is derived from it plus the
	// normalized address.
	globalWorkingDir string

	mu   sync.RWMutex
	view types.FleetView
}

// NewContext builds a worker context rooted at globalWorkingDir for the
// given local address and IP.
func NewContext(globalWorkingDir string, addr types.Address, ip types.IP) *Context {
	return &Context{
		Addr:             addr,
		IP:               ip,
		globalWorkingDir: globalWorkingDir,
	}
}

// WorkerDir is "<global_working_dir>/worker/<addr_key>/" per spec.md §6.
func (c *Context) WorkerDir() string {
	return filepath.Join(c.globalWorkingDir, "worker", c.Addr.Normalize())
}

// JobsDir holds extracted user job code: "worker/<addr_key>/jobs/<job_name>".
func (c *Context) JobsDir() string {
	return filepath.Join(c.WorkerDir(), "jobs")
}

// JobDir is the extracted directory for one job name.
func (c *Context) JobDir(name types.JobName) string {
	return filepath.Join(c.JobsDir(), string(name))
}

// ZipDir holds received archives: "worker/<addr_key>/zip".
func (c *Context) ZipDir() string {
	return filepath.Join(c.WorkerDir(), "zip")
}

// ZipPath is the archive path for one job name: "zip/<job_name>.zip".
func (c *Context) ZipPath(name types.JobName) string {
	return filepath.Join(c.ZipDir(), string(name)+".zip")
}

// ErrorZipPath names an outgoing error bundle exactly as the original does:
// "<ip_key>_<job>_errors.zip" under the zip dir.
func (c *Context) ErrorZipPath(name types.JobName) string {
	fname := c.IP.Normalize() + "_" + string(name) + "_errors.zip"
	return filepath.Join(c.ZipDir(), fname)
}

// RunDir is the per-run working directory for one job name, owned
// exclusively by its JobRecord while registered.
func (c *Context) RunDir(name types.JobName) string {
	return filepath.Join(c.WorkerDir(), string(name))
}

// FleetView returns a copy of the current fleet view (safe to read
// concurrently with ReplaceFleetView).
func (c *Context) FleetView() types.FleetView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// ReplaceFleetView atomically swaps in a new fleet view, published as a
// whole-sequence replacement so readers never observe a torn view
// (spec.md §5).
func (c *Context) ReplaceFleetView(v types.FleetView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// JobOffset returns the index of the local IP within the current fleet
// view's IP sequence — the shard id for the current epoch (spec.md §4.1
// step 4, preserving the original's "ips.index(local_ip)", not the address
// index).
func (c *Context) JobOffset() int {
	return c.FleetView().IndexOfIP(c.IP)
}

// AddAddr adds addr to the fleet view (a no-op if already present),
// publishing the extended view by whole-sequence replacement per spec.md
// §5. Used by add_node (spec.md §4.1) before forwarding the change to every
// running executor.
func (c *Context) AddAddr(addr types.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.view.Addrs {
		if a == addr {
			return
		}
	}
	c.view.Addrs = append(append([]types.Address{}, c.view.Addrs...), addr)
	c.view.IPs = append(append([]types.IP{}, c.view.IPs...), hostIP(addr))
}

// RemoveAddr removes addr from the fleet view, keeping Addrs/IPs
// index-aligned, publishing the shrunk view by whole-sequence replacement.
// Used by remove_node (spec.md §4.1) before forwarding the change to every
// running executor.
func (c *Context) RemoveAddr(addr types.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	addrs := make([]types.Address, 0, len(c.view.Addrs))
	ips := make([]types.IP, 0, len(c.view.IPs))
	for i, a := range c.view.Addrs {
		if a == addr {
			continue
		}
		addrs = append(addrs, a)
		ips = append(ips, c.view.IPs[i])
	}
	c.view.Addrs = addrs
	c.view.IPs = ips
}

// hostIP strips the port from a "host:port" address, mirroring the
// master's own address-to-IP bookkeeping (internal/master.ipFromAddr).
func hostIP(addr types.Address) types.IP {
	s := string(addr)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return types.IP(s[:i])
		}
	}
	return types.IP(s)
}
