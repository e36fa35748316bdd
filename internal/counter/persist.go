// ============================================================================
// Counter Persistence - counter.status round-trip
// ============================================================================
//
// Package: internal/counter
// File: persist.go
// Purpose: the persistence record from spec.md §3: a two-tuple of the
// Increment-counter container and the Merge-counter container, written
// atomically to counter.status under the counter server's working
// directory (spec.md §4.3, §6).
//
// Built on internal/snapshot.Manager[T], generalized from the teacher's
// job-queue-specific snapshot manager to this unrelated payload shape.
//
// ============================================================================

package counter

import "github.com/hiveworks/fleetd/internal/snapshot"

// persistedState is the on-disk shape of counter.status: both containers as
// plain group->item->Value maps (spec.md's "plain group→item→value maps").
type persistedState struct {
	Inc map[string]map[string]Value `json:"inc"`
	Acc map[string]map[string]Value `json:"acc"`
}

// persistenceManager wraps a snapshot.Manager[persistedState]; its own name
// stays unexported since only Server needs it.
type persistenceManager = snapshot.Manager[persistedState]

func newPersistenceManager(path string) *persistenceManager {
	return snapshot.NewManager[persistedState](path)
}
