// Package detect computes which items of a fresh snapshot are new
// relative to the last-seen state of a source.
package detect

import "streamwatch/internal/model"

// Result holds the outcome of comparing a snapshot with the last-seen set.
type Result struct {
	// New holds identifiers to notify about.
	New model.IDSet
	// Retained is the last-seen set to keep for the next cycle.
	Retained model.IDSet
}

// Base returns the retained identifiers that were already known, i.e.
// the set to persist before any new identifier has been delivered.
func (r Result) Base() model.IDSet {
	return r.Retained.Minus(r.New)
}

// Diff compares snapshot against lastSeen.
//
// New holds the snapshot identifiers found in neither lastSeen nor ignore.
// When prune is set, Retained is the intersection of lastSeen and
// snapshot, so identifiers that disappeared are forgotten. Otherwise
// Retained is the union of lastSeen and New and never shrinks.
//
// Diff does not modify its arguments.
func Diff(snapshot, lastSeen, ignore model.IDSet, prune bool) Result {
	fresh := snapshot.Minus(lastSeen).Minus(ignore)

	var retained model.IDSet
	if prune {
		retained = lastSeen.Intersect(snapshot)
	} else {
		retained = lastSeen.Union(fresh)
	}
	return Result{New: fresh, Retained: retained}
}

// IDs returns the identifiers of items.
func IDs(items []model.Item) model.IDSet {
	out := make(model.IDSet, len(items))
	for _, it := range items {
		out.Add(it.ID())
	}
	return out
}

// Select returns the items whose identifier is in ids, keeping snapshot
// order and only the first item per identifier.
func Select(items []model.Item, ids model.IDSet) []model.Item {
	var out []model.Item
	picked := make(model.IDSet, len(ids))
	for _, it := range items {
		id := it.ID()
		if !ids.Has(id) || picked.Has(id) {
			continue
		}
		picked.Add(id)
		out = append(out, it)
	}
	return out
}
