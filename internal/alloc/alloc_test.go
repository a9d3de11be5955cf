package alloc

import (
	"testing"

	"pgregory.net/rapid"

	"usbbw/internal/model"
)

// testingT is the subset of testing.TB used by the helpers below; it is
// also satisfied by *rapid.T.
type testingT interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

func mustPath(t testingT, s string) model.Path {
	t.Helper()
	p, err := model.ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}

func interruptEP(t testingT, packet, intervalUS int) model.Endpoint {
	t.Helper()
	ep, err := model.NewEndpoint(0x81, model.TransferInterrupt, model.DirIn, packet, 0, intervalUS)
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func newBus(num int, speed model.Speed) *model.Bus {
	return &model.Bus{Num: num, Speed: speed, Devices: map[string]*model.Device{}}
}

func TestAllocateSumsNestedDevices(t *testing.T) {
	bus := newBus(1, model.SpeedHigh)

	hub := &model.Device{Path: mustPath(t, "1-1"), IsHub: true,
		Children: []model.Path{mustPath(t, "1-1.1"), mustPath(t, "1-1.2")}}
	cam := &model.Device{Path: mustPath(t, "1-1.1"),
		Endpoints: []model.Endpoint{interruptEP(t, 1024, 125)}}
	kbd := &model.Device{Path: mustPath(t, "1-1.2"),
		Endpoints: []model.Endpoint{interruptEP(t, 8, 8000)}}
	mouse := &model.Device{Path: mustPath(t, "1-2"),
		Endpoints: []model.Endpoint{interruptEP(t, 16, 1000)}}

	for _, d := range []*model.Device{hub, cam, kbd, mouse} {
		bus.Devices[d.Path.String()] = d
	}

	top := model.NewTopology()
	top.Buses[1] = bus

	Allocate(top)

	want := cam.PeriodicBandwidth() + kbd.PeriodicBandwidth() + mouse.PeriodicBandwidth()
	if bus.Pool.Used != want {
		t.Errorf("pool used = %d, want %d", bus.Pool.Used, want)
	}
	if bus.Pool.Capacity != model.USB2PoolCapacityBPS {
		t.Errorf("pool capacity = %d, want %d", bus.Pool.Capacity, model.USB2PoolCapacityBPS)
	}
}

func TestAllocateIdempotent(t *testing.T) {
	bus := newBus(1, model.SpeedHigh)
	bus.Devices["1-1"] = &model.Device{Path: mustPath(t, "1-1"),
		Endpoints: []model.Endpoint{interruptEP(t, 64, 1000)}}

	top := model.NewTopology()
	top.Buses[1] = bus

	Allocate(top)
	first := bus.Pool
	Allocate(top)
	if bus.Pool != first {
		t.Errorf("second allocation changed pool: %+v vs %+v", bus.Pool, first)
	}
}

func TestAllocateEmptyTopology(t *testing.T) {
	top := model.NewTopology()
	Allocate(top) // must not panic

	top.Buses[4] = newBus(4, model.SpeedSuper)
	Allocate(top)
	if top.Buses[4].Pool.Used != 0 {
		t.Errorf("empty bus used = %d, want 0", top.Buses[4].Pool.Used)
	}
}

func TestAllocatePairedPoolsIndependent(t *testing.T) {
	usb2 := newBus(1, model.SpeedHigh)
	usb2.Devices["1-1"] = &model.Device{Path: mustPath(t, "1-1"),
		Endpoints: []model.Endpoint{interruptEP(t, 1024, 125)}}
	usb3 := newBus(2, model.SpeedSuper)

	top := model.NewTopology()
	top.Buses[1] = usb2
	top.Buses[2] = usb3
	top.Controllers["0000:00:14.0"] = &model.Controller{ID: "0000:00:14.0", USB2Bus: 1, USB3Bus: 2}

	Allocate(top)

	if usb3.Pool.Used != 0 {
		t.Errorf("USB 3.x pool used = %d, want 0", usb3.Pool.Used)
	}
	if usb3.Pool.Capacity != model.SpeedSuper.RawBPS()*80/100 {
		t.Errorf("USB 3.x pool capacity = %d", usb3.Pool.Capacity)
	}
	if usb2.Pool.Used == 0 {
		t.Error("USB 2.x pool should carry the endpoint load")
	}
}

func TestAllocateUsedEqualsEndpointSum(t *testing.T) {
	// Property: for an arbitrary hub depth, pool.Used is the exact sum
	// of all qualifying endpoint bandwidths on the bus.
	rapid.Check(t, func(t *rapid.T) {
		bus := newBus(1, model.SpeedHigh)
		depth := rapid.IntRange(1, 6).Draw(t, "depth")

		var want uint64
		parent := ""
		for level := 0; level < depth; level++ {
			path := "1-1"
			if parent != "" {
				path = parent + ".1"
			}
			d := &model.Device{Path: mustPath(t, path), IsHub: true}
			if parent != "" {
				bus.Devices[parent].Children = append(bus.Devices[parent].Children, d.Path)
			}

			nEP := rapid.IntRange(0, 3).Draw(t, "neps")
			for i := 0; i < nEP; i++ {
				packet := rapid.IntRange(1, 1024).Draw(t, "packet")
				interval := rapid.SampledFrom([]int{125, 250, 1000, 8000}).Draw(t, "interval")
				ep := interruptEP(t, packet, interval)
				d.Endpoints = append(d.Endpoints, ep)
				want += ep.Bandwidth()
			}

			bus.Devices[path] = d
			parent = path
		}

		top := model.NewTopology()
		top.Buses[1] = bus
		Allocate(top)

		if bus.Pool.Used != want {
			t.Fatalf("pool used = %d, want %d", bus.Pool.Used, want)
		}
	})
}

func TestBestBuses(t *testing.T) {
	mk := func(num int, speed model.Speed, used uint64) *model.Bus {
		b := newBus(num, speed)
		b.Pool = model.NewPool(speed)
		b.Pool.Used = used
		return b
	}

	top := model.NewTopology()
	top.Buses[1] = mk(1, model.SpeedHigh, 100_000_000)
	top.Buses[3] = mk(3, model.SpeedHigh, 0)
	top.Buses[5] = mk(5, model.SpeedHigh, 0)
	top.Buses[2] = mk(2, model.SpeedSuper, 0)

	got := BestBuses(top, 1_000_000, model.PoolUSB2)
	if len(got) != 3 {
		t.Fatalf("BestBuses returned %d buses, want 3", len(got))
	}
	// Buses 3 and 5 tie on availability; ascending bus number breaks it.
	if got[0].Bus.Num != 3 || got[1].Bus.Num != 5 || got[2].Bus.Num != 1 {
		t.Errorf("order = %d, %d, %d, want 3, 5, 1", got[0].Bus.Num, got[1].Bus.Num, got[2].Bus.Num)
	}

	// A requirement larger than any remaining budget filters the bus.
	got = BestBuses(top, 300_000_000, model.PoolUSB2)
	if len(got) != 2 {
		t.Fatalf("BestBuses returned %d buses, want 2", len(got))
	}

	got = BestBuses(top, 1_000_000, model.PoolUSB3)
	if len(got) != 1 || got[0].Bus.Num != 2 {
		t.Errorf("USB 3.x query = %v", got)
	}
}
