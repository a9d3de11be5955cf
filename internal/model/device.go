package model

import (
	"fmt"
	"strconv"

	"github.com/efficientgo/core/errors"
)

// Location holds the ACPI physical location attributes some platforms
// expose for USB ports.
type Location struct {
	Dock       bool
	Panel      string
	Horizontal string
	Vertical   string
	Lid        bool
}

// Display joins the non-empty position parts for human output.
func (l Location) Display() string {
	out := ""
	for _, part := range []string{l.Panel, l.Vertical, l.Horizontal} {
		if part == "" || part == "unknown" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	return out
}

// Device is one node in the topology tree. Hubs carry the paths of
// their children; all other links are implied by Path.
type Device struct {
	Path          Path
	Speed         Speed
	VendorID      uint16
	ProductID     uint16
	Manufacturer  string
	Product       string
	Serial        string
	Class         uint8
	IsHub         bool
	NumPorts      int
	Endpoints     []Endpoint
	Location      *Location
	Children      []Path
	Label         string
	USBVersion    string
	NumInterfaces int
	MaxPowerMA    int
	// Configured is false when the raw configuration value is absent
	// or zero, which is how the kernel reports enumeration failures
	// such as exhausted periodic bandwidth.
	Configured bool
}

// ParseID parses a 4-digit hex vendor or product id. Absent or
// malformed values fail with ErrMalformedDevice.
func ParseID(s string) (uint16, error) {
	if s == "" {
		return 0, errors.Wrap(ErrMalformedDevice, "missing id")
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedDevice, "id %q", s)
	}
	return uint16(v), nil
}

// VIDPID formats the vendor:product pair the way lsusb does.
func (d *Device) VIDPID() string {
	return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
}

// ConfigKey is the derived identifier used to address this device in
// label configuration: VID:PID:Serial when a serial is present,
// VID:PID otherwise.
func (d *Device) ConfigKey() string {
	if d.Serial != "" {
		return d.VIDPID() + ":" + d.Serial
	}
	return d.VIDPID()
}

// DisplayName picks the best available name: configured label, then
// product string, then manufacturer, then VID:PID.
func (d *Device) DisplayName() string {
	switch {
	case d.Label != "":
		return d.Label
	case d.Product != "":
		return d.Product
	case d.Manufacturer != "":
		return d.Manufacturer
	default:
		return d.VIDPID()
	}
}

// PeriodicBandwidth sums the reserved bandwidth of all endpoints.
// Non-periodic endpoints contribute 0 by construction.
func (d *Device) PeriodicBandwidth() uint64 {
	var sum uint64
	for _, ep := range d.Endpoints {
		sum += ep.Bandwidth()
	}
	return sum
}

// PeriodicEndpoints returns the endpoints that reserve bandwidth.
func (d *Device) PeriodicEndpoints() []Endpoint {
	var out []Endpoint
	for _, ep := range d.Endpoints {
		if ep.Type.ReservesBandwidth() {
			out = append(out, ep)
		}
	}
	return out
}
