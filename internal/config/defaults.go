package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"usbbw/internal/model"
)

// ApplyLabels walks a topology and resolves every label through the
// configuration, writing the result onto the entities. Devices without
// any matching rule keep an empty label and fall back through
// DisplayName at render time.
func ApplyLabels(c *Config, t *model.Topology) {
	for _, ctrl := range t.Controllers {
		if label, ok := c.ControllerLabel(ctrl.PCIAddress); ok {
			ctrl.Label = label
		}
	}
	for _, bus := range t.Buses {
		if label, ok := c.BusLabel(strconv.Itoa(bus.Num)); ok {
			bus.Label = label
		}
		for _, d := range bus.Devices {
			if label, ok := c.DeviceLabel(d.Path.String(), d.VendorID, d.ProductID, d.Serial, d.Location); ok {
				d.Label = label
			}
		}
	}
}

// Generate seeds a configuration from a live topology: one product
// entry per distinct device, controller entries by PCI address, and a
// physical port rule per distinct location seen. The result is a
// starting point for hand editing, not a round-trip of existing
// labels.
func Generate(t *model.Topology) *Config {
	cfg := Default()

	for _, ctrl := range t.ControllersSorted() {
		name := fmt.Sprintf("%s Controller", ctrl.Type)
		cfg.Controllers[ctrl.PCIAddress] = name
	}

	for _, bus := range t.BusesSorted() {
		cfg.Buses[strconv.Itoa(bus.Num)] = fmt.Sprintf("Bus %d (%s)", bus.Num, bus.Pool.Class)
	}

	seenLoc := map[string]bool{}
	for _, d := range t.DevicesTreeOrder() {
		key := d.ConfigKey()
		if _, ok := cfg.Products[key]; !ok {
			cfg.Products[key] = d.DisplayName()
		}
		if d.Location != nil {
			sig := d.Location.Display()
			if !seenLoc[sig] {
				seenLoc[sig] = true
				cfg.PhysicalPorts = append(cfg.PhysicalPorts, portRule(*d.Location, cfg.PositionLabels))
			}
		}
	}

	sort.Slice(cfg.PhysicalPorts, func(i, j int) bool {
		return cfg.PhysicalPorts[i].Label < cfg.PhysicalPorts[j].Label
	})
	return cfg
}

// portRule builds a physical port rule matching one observed location,
// with a label assembled from the translated position values.
func portRule(loc model.Location, names PositionLabels) PortLabel {
	rule := PortLabel{}
	var parts []string

	if loc.Dock {
		dock := true
		rule.Dock = &dock
		parts = append(parts, "Dock")
	}
	if loc.Panel != "" {
		panel := loc.Panel
		rule.Panel = &panel
		parts = append(parts, translate(names.Panel, loc.Panel))
	}
	if loc.Vertical != "" {
		vert := loc.Vertical
		rule.Vertical = &vert
		parts = append(parts, translate(names.Vertical, loc.Vertical))
	}
	if loc.Horizontal != "" {
		horiz := loc.Horizontal
		rule.Horizontal = &horiz
		parts = append(parts, translate(names.Horizontal, loc.Horizontal))
	}
	if len(parts) == 0 {
		rule.Label = "Port"
		return rule
	}
	rule.Label = strings.Join(parts, " ") + " Port"
	return rule
}

// translate maps a raw ACPI position value through the configured
// translation table, title-casing the raw value when no entry exists.
func translate(table map[string]string, raw string) string {
	if name, ok := table[raw]; ok {
		return name
	}
	if raw == "" {
		return raw
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}
