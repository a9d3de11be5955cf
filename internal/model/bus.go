package model

import (
	"fmt"
	"sort"
)

// USB2PoolCapacityBPS is the fixed periodic budget of a USB 2.x bus:
// 80% of the 480 Mbps high-speed link rate, regardless of the speeds
// of the attached devices.
const USB2PoolCapacityBPS uint64 = 384_000_000

// PoolClass distinguishes the two bandwidth pools an xHCI controller
// exposes as separate buses.
type PoolClass string

const (
	PoolUSB2 PoolClass = "USB 2.x"
	PoolUSB3 PoolClass = "USB 3.x"
)

// Pool is the periodic bandwidth budget of one bus. Used is the true
// arithmetic sum over qualifying endpoints and is deliberately not
// clamped to Capacity: sysfs can report endpoints of devices that
// failed to configure, and an over-subscribed pool is exactly the
// signal an operator is looking for.
type Pool struct {
	Class    PoolClass
	Capacity uint64
	Used     uint64
}

// NewPool builds the pool for a bus root speed. USB 2.x-class buses
// always get the fixed 384 Mbps budget; USB 3.x buses get 80% of
// their own link rate, independent of the paired USB 2.x bus.
func NewPool(speed Speed) Pool {
	if speed.IsSuperSpeed() {
		return Pool{
			Class:    PoolUSB3,
			Capacity: speed.RawBPS() * 80 / 100,
		}
	}
	return Pool{
		Class:    PoolUSB2,
		Capacity: USB2PoolCapacityBPS,
	}
}

// Available returns the remaining budget, saturating at zero when the
// pool is over-subscribed.
func (p Pool) Available() uint64 {
	if p.Used >= p.Capacity {
		return 0
	}
	return p.Capacity - p.Used
}

// Oversubscribed reports whether reserved bandwidth exceeds the
// budget.
func (p Pool) Oversubscribed() bool {
	return p.Used > p.Capacity
}

// UsagePercent can exceed 100 for an over-subscribed pool.
func (p Pool) UsagePercent() float64 {
	if p.Capacity == 0 {
		return 0
	}
	return float64(p.Used) / float64(p.Capacity) * 100
}

// Bus is one root hub with the devices below it. Devices is an arena
// keyed by path string; tree structure is carried by Device.Children.
type Bus struct {
	Num          int
	Speed        Speed
	Version      string
	NumPorts     int
	ControllerID string
	Label        string
	Devices      map[string]*Device
	Pool         Pool
}

// Device looks up a device on this bus by path.
func (b *Bus) Device(p Path) (*Device, bool) {
	d, ok := b.Devices[p.String()]
	return d, ok
}

// DevicesTreeOrder returns all devices depth-first from the root
// ports, children in ascending port order.
func (b *Bus) DevicesTreeOrder() []*Device {
	var roots []*Device
	for _, d := range b.Devices {
		if d.Path.Depth() == 0 {
			roots = append(roots, d)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Path.Compare(roots[j].Path) < 0
	})

	var out []*Device
	var walk func(d *Device)
	walk = func(d *Device) {
		out = append(out, d)
		children := append([]Path(nil), d.Children...)
		sort.Slice(children, func(i, j int) bool {
			return children[i].Compare(children[j]) < 0
		})
		for _, cp := range children {
			if c, ok := b.Devices[cp.String()]; ok {
				walk(c)
			}
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}

// DisplayName prefers the configured label over the bare bus number.
func (b *Bus) DisplayName() string {
	if b.Label != "" {
		return b.Label
	}
	return fmt.Sprintf("Bus %d", b.Num)
}

// TotalPowerMA sums the configured maximum power of all devices on
// this bus in milliamps.
func (b *Bus) TotalPowerMA() int {
	total := 0
	for _, d := range b.Devices {
		total += d.MaxPowerMA
	}
	return total
}

// ControllerType distinguishes plain USB controllers from
// USB4/Thunderbolt ones.
type ControllerType string

const (
	ControllerUSB  ControllerType = "USB"
	ControllerUSB4 ControllerType = "USB4/TB"
)

// Controller is one physical host controller. An xHCI controller
// exposes a USB 2.x bus and a USB 3.x bus as separate bus numbers;
// both slots are 0 when absent.
type Controller struct {
	ID         string
	PCIAddress string
	USB2Bus    int
	USB3Bus    int
	Label      string
	Type       ControllerType
}

// DisplayName prefers the configured label over the PCI address.
func (c *Controller) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.PCIAddress
}
