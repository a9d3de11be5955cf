// Package alloc computes per-bus periodic bandwidth pools over a
// parsed topology. It is accounting, not scheduling: the host
// controller already decided every allocation outcome, and this
// engine reports the derived view.
package alloc

import (
	"sort"

	"usbbw/internal/model"
)

// Allocate walks every bus of the topology depth-first (children in
// ascending port order) and assigns the sum of the reserved endpoint
// bandwidth to the bus pool. It is a total function over any valid
// topology, including an empty one, and idempotent: pools are
// recomputed from zero on every call.
func Allocate(t *model.Topology) {
	for _, bus := range t.Buses {
		pool := model.NewPool(bus.Speed)
		for _, d := range bus.DevicesTreeOrder() {
			pool.Used += d.PeriodicBandwidth()
		}
		bus.Pool = pool
	}
}

// BusChoice pairs a bus with its remaining periodic budget.
type BusChoice struct {
	Bus       *model.Bus
	Available uint64
}

// BestBuses returns the buses of the requested pool class that still
// fit requiredBPS, sorted by descending available bandwidth with ties
// broken by ascending bus number.
func BestBuses(t *model.Topology, requiredBPS uint64, class model.PoolClass) []BusChoice {
	var out []BusChoice
	for _, bus := range t.BusesSorted() {
		if bus.Pool.Class != class {
			continue
		}
		avail := bus.Pool.Available()
		if avail < requiredBPS {
			continue
		}
		out = append(out, BusChoice{Bus: bus, Available: avail})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Available != out[j].Available {
			return out[i].Available > out[j].Available
		}
		return out[i].Bus.Num < out[j].Bus.Num
	})
	return out
}
