// ============================================================================
// Counter Aggregator - Pluggable Combine Strategies
// ============================================================================
//
// Package: internal/counter
// File: aggregator.go
// Purpose: Aggregator interface + the two concrete strategies spec.md names:
// Increment (numeric add, identity 0) and Merge (tagged-union deep-combine).
//
// Grounded on cola/functions/counter.py's Counter(aggregator) pairing, where
// CounterServer holds one Increment-aggregated counter and one
// Merge-aggregated counter side by side (inc_counter / acc_counter).
//
// ============================================================================

package counter

// Aggregator combines a running total with an incoming Value. Identity
// returns the aggregator's neutral value; Container does not consult it and
// stores the first write to an untouched group/item pair as-is.
type Aggregator interface {
	Identity() Value
	Combine(current, incoming Value) (Value, error)
}

// IncrementAggregator adds Numbers; it is used for the first counter in the
// pair. It delegates to the same Combine as MergeAggregator, so non-Number
// Values are combined by the kind rules in value.go rather than added.
type IncrementAggregator struct{}

func (IncrementAggregator) Identity() Value { return Zero() }

func (IncrementAggregator) Combine(current, incoming Value) (Value, error) {
	return Combine(current, incoming)
}

// MergeAggregator performs the tagged-union deep-combine spec.md describes
// for the second counter in the pair: number+number=add, sequence+sequence=
// concat, set+set=union, mapping+mapping=recursive merge.
type MergeAggregator struct{}

func (MergeAggregator) Identity() Value { return Zero() }

func (MergeAggregator) Combine(current, incoming Value) (Value, error) {
	return Combine(current, incoming)
}
