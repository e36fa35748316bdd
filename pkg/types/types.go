// ============================================================================
// Fleetd Core Type Definitions
// ============================================================================
//
// Package: pkg/types
// Purpose: Shared domain models used across the worker, counter, transport
// and master packages.
//
// Design Principles:
//   1. Small, serialization-friendly value types
//   2. No behavior that depends on a specific package's internals
//   3. JSON tags throughout so these types double as wire and persistence
//      shapes without a second representation
//
// ============================================================================

package types

import "strings"

// Address is a "host:port" string identifying a worker or master endpoint.
type Address string

// Normalize returns a filesystem-safe form of the address, replacing dots
// and colons with underscores (used for per-worker directory names;
// error-bundle file names use IP.Normalize).
func (a Address) Normalize() string {
	s := string(a)
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

func (a Address) String() string { return string(a) }

// IP is a bare host (no port), used as the index key for job_offset.
type IP string

func (ip IP) Normalize() string {
	return strings.ReplaceAll(string(ip), ".", "_")
}

// FleetView is the worker's last-known roster of the cluster, as reported by
// the master's register_heartbeat reply. Addrs and IPs are index-aligned:
// IPs[i] is the bare host of Addrs[i].
type FleetView struct {
	Addrs []Address `json:"addrs"`
	IPs   []IP      `json:"ips"`
}

// Len returns the number of worker slots in this view.
func (v FleetView) Len() int {
	return len(v.Addrs)
}

// IndexOfIP returns the index of ip within the IP sequence, or -1 if the
// local worker isn't (yet) part of the fleet view. This index is the job
// shard id (job_offset) for the current epoch.
func (v FleetView) IndexOfIP(ip IP) int {
	for i, x := range v.IPs {
		if x == ip {
			return i
		}
	}
	return -1
}

// JobName identifies a user job, unique within a worker while running.
type JobName string
