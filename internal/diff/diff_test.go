package diff

import (
	"testing"

	"usbbw/internal/model"
)

// buildTopology creates a single-bus topology with plain devices at
// the given paths. serials optionally overrides the serial per path.
func buildTopology(t *testing.T, paths []string, serials map[string]string) *model.Topology {
	t.Helper()

	top := model.NewTopology()
	bus := &model.Bus{Num: 1, Speed: model.SpeedHigh, Devices: map[string]*model.Device{}}
	top.Buses[1] = bus

	for i, s := range paths {
		p, err := model.ParsePath(s)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", s, err)
		}
		d := &model.Device{Path: p, VendorID: 0x1000, ProductID: uint16(i + 1)}
		if serials != nil {
			d.Serial = serials[s]
		}
		bus.Devices[s] = d
	}
	return top
}

func TestDiffFirstSnapshotAllNew(t *testing.T) {
	tr := NewTracker()
	top := buildTopology(t, []string{"1-2", "1-1", "1-3"}, nil)

	res := tr.Diff(top)

	if res.NewCount != 3 || res.RemovedCount != 0 {
		t.Fatalf("counts = %d new, %d removed", res.NewCount, res.RemovedCount)
	}

	// Ordinals strictly increase in traversal (path) order.
	wantOrder := []string{"1-1", "1-2", "1-3"}
	for i, path := range wantOrder {
		e := res.ByPath[path]
		if e.Class != New {
			t.Errorf("%s classified %s, want new", path, e.Class)
		}
		if e.Ordinal != i+1 {
			t.Errorf("%s ordinal = %d, want %d", path, e.Ordinal, i+1)
		}
	}
}

func TestDiffIdenticalSnapshotsUnchanged(t *testing.T) {
	tr := NewTracker()
	paths := []string{"1-1", "1-2"}
	tr.Diff(buildTopology(t, paths, nil))

	res := tr.Diff(buildTopology(t, paths, nil))

	if res.NewCount != 0 || res.RemovedCount != 0 {
		t.Fatalf("counts = %d new, %d removed", res.NewCount, res.RemovedCount)
	}
	for _, p := range paths {
		if res.Class(p) != Unchanged {
			t.Errorf("%s classified %s, want unchanged", p, res.Class(p))
		}
	}
}

func TestDiffOrdinalStability(t *testing.T) {
	tr := NewTracker()
	tr.Diff(buildTopology(t, []string{"1-1", "1-2"}, nil))

	// 1-2 goes away, 1-3 appears: 1-1 keeps its ordinal, 1-3 gets the
	// next free one, nothing is renumbered.
	res := tr.Diff(buildTopology(t, []string{"1-1", "1-3"}, nil))

	if res.Class("1-1") != Unchanged || res.Ordinal("1-1") != 1 {
		t.Errorf("1-1 = %s/%d, want unchanged/1", res.Class("1-1"), res.Ordinal("1-1"))
	}
	if res.Class("1-2") != Removed {
		t.Errorf("1-2 = %s, want removed", res.Class("1-2"))
	}
	if res.Class("1-3") != New || res.Ordinal("1-3") != 3 {
		t.Errorf("1-3 = %s/%d, want new/3", res.Class("1-3"), res.Ordinal("1-3"))
	}

	// Another refresh with a fourth device: older ordinals untouched.
	res = tr.Diff(buildTopology(t, []string{"1-1", "1-3", "1-4"}, nil))
	if res.Ordinal("1-1") != 1 || res.Ordinal("1-3") != 3 {
		t.Error("ordinals of previously seen devices were recomputed")
	}
	if res.Ordinal("1-4") != 4 {
		t.Errorf("1-4 ordinal = %d, want 4", res.Ordinal("1-4"))
	}
}

func TestDiffPathReuseIsRemovedPlusNew(t *testing.T) {
	tr := NewTracker()
	tr.Diff(buildTopology(t, []string{"1-1"}, map[string]string{"1-1": "serial-A"}))

	// Same path, different physical device.
	res := tr.Diff(buildTopology(t, []string{"1-1"}, map[string]string{"1-1": "serial-B"}))

	if res.Class("1-1") != New {
		t.Fatalf("reused path classified %s, want new", res.Class("1-1"))
	}
	if res.RemovedCount != 1 || res.NewCount != 1 {
		t.Errorf("counts = %d new, %d removed, want 1/1", res.NewCount, res.RemovedCount)
	}
	if res.Ordinal("1-1") != 2 {
		t.Errorf("replacement ordinal = %d, want a fresh one", res.Ordinal("1-1"))
	}
}

func TestDiffEmptyTopologies(t *testing.T) {
	tr := NewTracker()

	res := tr.Diff(model.NewTopology())
	if res.NewCount != 0 || res.RemovedCount != 0 {
		t.Error("diff of empty against nil should be empty")
	}

	tr.Diff(buildTopology(t, []string{"1-1"}, nil))
	res = tr.Diff(model.NewTopology())
	if res.RemovedCount != 1 || res.Class("1-1") != Removed {
		t.Error("unplugging everything should classify all devices removed")
	}
}
