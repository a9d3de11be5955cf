package model

import "sort"

// Topology is one immutable snapshot of all controllers and buses.
// A refresh always builds a brand-new Topology; nothing mutates a
// live snapshot after construction.
type Topology struct {
	Controllers map[string]*Controller
	Buses       map[int]*Bus
}

// NewTopology returns an empty topology.
func NewTopology() *Topology {
	return &Topology{
		Controllers: make(map[string]*Controller),
		Buses:       make(map[int]*Bus),
	}
}

// BusesSorted returns the buses in ascending bus-number order.
func (t *Topology) BusesSorted() []*Bus {
	out := make([]*Bus, 0, len(t.Buses))
	for _, b := range t.Buses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// ControllersSorted returns the controllers in id order.
func (t *Topology) ControllersSorted() []*Controller {
	out := make([]*Controller, 0, len(t.Controllers))
	for _, c := range t.Controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeviceCount is the number of devices across all buses.
func (t *Topology) DeviceCount() int {
	n := 0
	for _, b := range t.Buses {
		n += len(b.Devices)
	}
	return n
}

// Device finds a device anywhere in the topology by path.
func (t *Topology) Device(p Path) (*Device, bool) {
	b, ok := t.Buses[p.Bus]
	if !ok {
		return nil, false
	}
	return b.Device(p)
}

// DevicesTreeOrder returns every device in the topology in
// deterministic display order: buses ascending, then depth-first
// within each bus.
func (t *Topology) DevicesTreeOrder() []*Device {
	var out []*Device
	for _, b := range t.BusesSorted() {
		out = append(out, b.DevicesTreeOrder()...)
	}
	return out
}

// PairedBus returns the other bus of the same controller, honoring
// the xHCI pairing of one USB 2.x and one USB 3.x bus per controller.
func (t *Topology) PairedBus(busNum int) (int, bool) {
	for _, c := range t.Controllers {
		if c.USB2Bus == busNum && c.USB3Bus != 0 {
			return c.USB3Bus, true
		}
		if c.USB3Bus == busNum && c.USB2Bus != 0 {
			return c.USB2Bus, true
		}
	}
	return 0, false
}

// ControllerForBus returns the controller owning a bus.
func (t *Topology) ControllerForBus(busNum int) (*Controller, bool) {
	for _, c := range t.Controllers {
		if c.USB2Bus == busNum || c.USB3Bus == busNum {
			return c, true
		}
	}
	return nil, false
}
