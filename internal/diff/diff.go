// Package diff classifies devices across topology snapshots as
// unchanged, new, or removed, and assigns stable discovery ordinals
// to devices first seen during the process lifetime.
package diff

import (
	"usbbw/internal/model"
)

// Class is the classification of one device path across a refresh.
type Class string

const (
	Unchanged Class = "unchanged"
	New       Class = "new"
	Removed   Class = "removed"
)

// Entry is the classification result for one device path.
type Entry struct {
	Path  string
	Class Class
	// Ordinal is the 1-based discovery number, set for every device
	// that was ever classified New this session; 0 otherwise.
	Ordinal int
}

// Result maps device paths of the current snapshot (plus removed
// paths from the previous one) to their classification.
type Result struct {
	ByPath map[string]Entry
	// NewCount and RemovedCount summarize the refresh.
	NewCount     int
	RemovedCount int
}

// Class returns the classification for a path, defaulting to
// Unchanged for paths the differ never saw.
func (r *Result) Class(path string) Class {
	if e, ok := r.ByPath[path]; ok {
		return e.Class
	}
	return Unchanged
}

// Ordinal returns the discovery number for a path, 0 if the device
// was present at the first snapshot or unknown.
func (r *Result) Ordinal(path string) int {
	return r.ByPath[path].Ordinal
}

// Tracker carries the process-scoped diff state: the previous
// snapshot, the discovery ordinals handed out so far, and the device
// identity last seen at each path. It is owned by the refresh loop
// and explicitly threaded through every refresh; ordinals reset only
// on process restart.
type Tracker struct {
	prev     *model.Topology
	ordinals map[string]int
	identity map[string]string
	next     int
}

// NewTracker returns an empty tracker; the first Diff call sees a nil
// previous snapshot and classifies everything New.
func NewTracker() *Tracker {
	return &Tracker{
		ordinals: make(map[string]int),
		identity: make(map[string]string),
		next:     1,
	}
}

// Diff compares the current snapshot against the previous one and
// advances the tracker. Devices are keyed by path; a path that is
// reused by a different physical device (config key changed) is
// classified Removed+New with a fresh ordinal rather than Unchanged.
// Ordinals of previously seen devices are never recomputed.
func (tr *Tracker) Diff(current *model.Topology) *Result {
	res := &Result{ByPath: make(map[string]Entry)}

	prevKeys := make(map[string]string)
	if tr.prev != nil {
		for _, d := range tr.prev.DevicesTreeOrder() {
			prevKeys[d.Path.String()] = d.ConfigKey()
		}
	}

	seen := make(map[string]bool)
	for _, d := range current.DevicesTreeOrder() {
		path := d.Path.String()
		key := d.ConfigKey()
		seen[path] = true

		prevKey, existed := prevKeys[path]
		if tr.prev != nil && existed && prevKey == key {
			res.ByPath[path] = Entry{Path: path, Class: Unchanged, Ordinal: tr.ordinals[path]}
			continue
		}

		if existed && prevKey != key {
			// Same path, different device: invalidate the old identity
			// so the newcomer gets its own ordinal.
			delete(tr.ordinals, path)
			res.RemovedCount++
		}

		if _, has := tr.ordinals[path]; !has || tr.identity[path] != key {
			tr.ordinals[path] = tr.next
			tr.next++
		}
		tr.identity[path] = key
		res.ByPath[path] = Entry{Path: path, Class: New, Ordinal: tr.ordinals[path]}
		res.NewCount++
	}

	for path := range prevKeys {
		if !seen[path] {
			res.ByPath[path] = Entry{Path: path, Class: Removed, Ordinal: tr.ordinals[path]}
			res.RemovedCount++
		}
	}

	tr.prev = current
	return res
}

// Previous returns the snapshot the next Diff call will compare
// against; nil before the first call.
func (tr *Tracker) Previous() *model.Topology {
	return tr.prev
}
