// ============================================================================
// Counter Container (C4) - group -> item -> Value store
// ============================================================================
//
// Package: internal/counter
// File: container.go
// Purpose: the C4 component from spec.md §4.2 — a two-level map (group,
// then item) of Values, combined via a pluggable Aggregator.
//
// Grounded on cola/functions/counter.py's Counter class, which wraps a
// defaultdict(dict) keyed by group then item and an injected aggregate_func.
// A group/item pair that has never been written behaves as if absent (not
// as Aggregator.Identity() combined with the first write) — this matches
// the Python defaultdict-on-first-write semantics exactly: the first value
// for a key is stored as-is, not combined with a zero.
//
// ============================================================================

package counter

import "sync"

// Container is C4: the group->item->Value store, serialized under a mutex
// because inc/merge requests arrive concurrently from many workers.
type Container struct {
	mu         sync.RWMutex
	data       map[string]map[string]Value
	aggregator Aggregator
}

// NewContainer builds an empty container using the given combine strategy.
func NewContainer(agg Aggregator) *Container {
	return &Container{
		data:       make(map[string]map[string]Value),
		aggregator: agg,
	}
}

// Inc combines val into the existing value at (group, item) via the
// aggregator; a cell that has never been written starts from val itself
// (equivalent to combining the aggregator's identity with val).
func (c *Container) Inc(group, item string, val Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incLocked(group, item, val)
}

func (c *Container) incLocked(group, item string, val Value) error {
	items, ok := c.data[group]
	if !ok {
		items = make(map[string]Value)
		c.data[group] = items
	}

	current, ok := items[item]
	if !ok {
		items[item] = val
		return nil
	}

	combined, err := c.aggregator.Combine(current, val)
	if err != nil {
		return err
	}
	items[item] = combined
	return nil
}

// Get returns the value at (group, item), or def if the cell is unset.
func (c *Container) Get(group, item string, def Value) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.data[group]
	if !ok {
		return def
	}
	v, ok := items[item]
	if !ok {
		return def
	}
	return v
}

// Merge applies every cell of other via Inc, per spec: "for every cell in
// other, inc(group, item, other[group][item])". Used by the server's
// inc_merge/acc_merge bulk RPCs to absorb a client's staging container.
func (c *Container) Merge(other map[string]map[string]Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for group, items := range other {
		for item, val := range items {
			if err := c.incLocked(group, item, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetGroup returns a shallow copy of every item in a group.
func (c *Container) GetGroup(group string) map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.data[group]
	if !ok {
		return nil
	}
	out := make(map[string]Value, len(items))
	for k, v := range items {
		out[k] = v
	}
	return out
}

// Snapshot returns a deep-enough copy of the whole container for
// persistence (see internal/counter/persist.go).
func (c *Container) Snapshot() map[string]map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]Value, len(c.data))
	for group, items := range c.data {
		itemsCopy := make(map[string]Value, len(items))
		for k, v := range items {
			itemsCopy[k] = v
		}
		out[group] = itemsCopy
	}
	return out
}

// Restore replaces the container's contents, used when loading a
// persisted counter.status snapshot at startup.
func (c *Container) Restore(data map[string]map[string]Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data == nil {
		data = make(map[string]map[string]Value)
	}
	c.data = data
}

// Reset clears the container, used by CounterClient at the end of every
// sync(), whether or not the server calls succeeded.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]map[string]Value)
}
