// Package config implements the layered label configuration: YAML
// files with inheritance, deep merge, and the label resolution chain
// for controllers, buses, and devices.
package config

import (
	"errors"

	"usbbw/internal/model"
)

var (
	// ErrConfigCycle is returned when inheritance references loop.
	ErrConfigCycle = errors.New("config inheritance cycle")

	// ErrConfigParse is returned for unreadable or malformed layer
	// content.
	ErrConfigParse = errors.New("config parse error")
)

// Settings are the global application settings carried in the config
// file alongside labels.
type Settings struct {
	// RefreshMS is the watch-mode refresh interval in milliseconds.
	RefreshMS int `yaml:"refresh_ms"`
	// Theme is "dark" or "light".
	Theme string `yaml:"theme"`
	// UseBits selects bits/s over bytes/s in bandwidth output.
	UseBits bool `yaml:"use_bits"`
}

// PortLabel labels a physical port position. Nil matcher fields match
// anything.
type PortLabel struct {
	Panel      *string `yaml:"panel,omitempty"`
	Horizontal *string `yaml:"horizontal_position,omitempty"`
	Vertical   *string `yaml:"vertical_position,omitempty"`
	Dock       *bool   `yaml:"dock,omitempty"`
	Label      string  `yaml:"label"`
}

// Matches reports whether a device location satisfies every set
// matcher of this rule.
func (pl PortLabel) Matches(loc model.Location) bool {
	if pl.Panel != nil && *pl.Panel != loc.Panel {
		return false
	}
	if pl.Horizontal != nil && *pl.Horizontal != loc.Horizontal {
		return false
	}
	if pl.Vertical != nil && *pl.Vertical != loc.Vertical {
		return false
	}
	if pl.Dock != nil && *pl.Dock != loc.Dock {
		return false
	}
	return true
}

// PositionLabels translate raw ACPI position values into friendlier
// words when generating default port labels.
type PositionLabels struct {
	Panel      map[string]string `yaml:"panel,omitempty"`
	Vertical   map[string]string `yaml:"vertical,omitempty"`
	Horizontal map[string]string `yaml:"horizontal,omitempty"`
}

// Mermaid holds diagram export options.
type Mermaid struct {
	HidePaths               []string `yaml:"hide_paths,omitempty"`
	FilterVendors           []string `yaml:"filter_vendors,omitempty"`
	CollapseSingleChildHubs bool     `yaml:"collapse_single_child_hubs,omitempty"`
}

// Config is a fully merged configuration. Lookups are by key; topology
// entities never hold a reference to it.
type Config struct {
	Settings       Settings          `yaml:"settings"`
	Controllers    map[string]string `yaml:"controllers,omitempty"`
	Buses          map[string]string `yaml:"buses,omitempty"`
	Devices        map[string]string `yaml:"devices,omitempty"`
	Products       map[string]string `yaml:"products,omitempty"`
	PhysicalPorts  []PortLabel       `yaml:"physical_ports,omitempty"`
	PositionLabels PositionLabels    `yaml:"position_labels,omitempty"`
	Mermaid        Mermaid           `yaml:"mermaid,omitempty"`
}

// Default returns the configuration used when no file exists or when
// loading failed and the caller falls back to an empty config.
func Default() *Config {
	return &Config{
		Settings: Settings{
			RefreshMS: 1000,
			Theme:     "dark",
			UseBits:   true,
		},
		Controllers: map[string]string{},
		Buses:       map[string]string{},
		Devices:     map[string]string{},
		Products:    map[string]string{},
	}
}

// DeviceLabel resolves a device label through the fixed priority
// chain: serial-qualified product key, serial-agnostic product key,
// physical location rules, then the device-path key. The order is
// contractual: reordering changes which label a shared VID:PID device
// shows versus a uniquely serialized one.
func (c *Config) DeviceLabel(path string, vendorID, productID uint16, serial string, loc *model.Location) (string, bool) {
	d := model.Device{VendorID: vendorID, ProductID: productID, Serial: serial}

	if serial != "" {
		if label, ok := c.Products[d.ConfigKey()]; ok {
			return label, true
		}
	}
	if label, ok := c.Products[d.VIDPID()]; ok {
		return label, true
	}
	if loc != nil {
		for _, rule := range c.PhysicalPorts {
			if rule.Matches(*loc) {
				return rule.Label, true
			}
		}
	}
	if label, ok := c.Devices[path]; ok {
		return label, true
	}
	return "", false
}

// ControllerLabel resolves a controller label by PCI address.
func (c *Config) ControllerLabel(pciAddress string) (string, bool) {
	label, ok := c.Controllers[pciAddress]
	return label, ok
}

// BusLabel resolves a bus label by bus number.
func (c *Config) BusLabel(busNum string) (string, bool) {
	label, ok := c.Buses[busNum]
	return label, ok
}

// HidePath reports whether a device path is hidden from diagram
// export.
func (c *Config) HidePath(path string) bool {
	for _, p := range c.Mermaid.HidePaths {
		if p == path {
			return true
		}
	}
	return false
}

// ShowVendor reports whether a vendor name passes the diagram vendor
// filter. An empty filter shows everything.
func (c *Config) ShowVendor(vendor string) bool {
	if len(c.Mermaid.FilterVendors) == 0 {
		return true
	}
	for _, v := range c.Mermaid.FilterVendors {
		if v == vendor {
			return true
		}
	}
	return false
}
