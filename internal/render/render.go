// Package render formats annotated topology snapshots as plain text
// reports. It is presentation only: all computation happened during
// the refresh.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"usbbw/internal/diff"
	"usbbw/internal/model"
)

// Summary writes the per-bus bandwidth summary.
func Summary(w io.Writer, top *model.Topology) {
	fmt.Fprintln(w, "USB Bus Bandwidth Summary")
	fmt.Fprintln(w, "=========================")
	fmt.Fprintln(w)

	for _, bus := range top.BusesSorted() {
		pool := bus.Pool
		fmt.Fprintf(w, "%s (%s, %s)\n", bus.DisplayName(), pool.Class, bus.Speed.ShortName())
		fmt.Fprintf(w, "  Periodic BW: %s / %s (%.1f%%)\n",
			model.FormatBPS(pool.Used), model.FormatBPS(pool.Capacity), pool.UsagePercent())
		fmt.Fprintf(w, "  Available:   %s\n", model.FormatBPS(pool.Available()))
		if pool.Oversubscribed() {
			fmt.Fprintln(w, "  Status:      OVERSUBSCRIBED")
		}
		fmt.Fprintf(w, "  Devices:     %d\n", len(bus.Devices))
		if power := bus.TotalPowerMA(); power > 0 {
			fmt.Fprintf(w, "  Power:       %d mA\n", power)
		}
		if num, ok := top.PairedBus(bus.Num); ok {
			if paired, ok := top.Buses[num]; ok {
				fmt.Fprintf(w, "  Paired Bus:  %s (%s)\n", paired.DisplayName(), paired.Pool.Class)
			}
		}
		fmt.Fprintln(w)
	}
}

// DeviceList writes the indented device tree per bus. periodicOnly
// hides devices without reserved bandwidth; verbose adds power,
// serial, and per-endpoint lines.
func DeviceList(w io.Writer, top *model.Topology, periodicOnly, verbose bool) {
	for _, bus := range top.BusesSorted() {
		fmt.Fprintf(w, "=== %s (%s) ===\n", bus.DisplayName(), bus.Speed.ShortName())

		for _, d := range bus.DevicesTreeOrder() {
			periodic := d.PeriodicEndpoints()
			if periodicOnly && len(periodic) == 0 {
				continue
			}

			indent := strings.Repeat("  ", d.Path.Depth()+1)
			fmt.Fprintf(w, "%s%s %s (%s)%s\n",
				indent, deviceIcon(d), d.DisplayName(), d.VIDPID(), deviceStatus(d))

			if !verbose {
				continue
			}
			if d.MaxPowerMA > 0 {
				fmt.Fprintf(w, "%s    Power: %d mA\n", indent, d.MaxPowerMA)
			}
			if d.Serial != "" {
				fmt.Fprintf(w, "%s    Serial: %s\n", indent, d.Serial)
			}
			for _, ep := range periodic {
				fmt.Fprintf(w, "%s    EP%02X %s %s %dB @ %s -> %s\n",
					indent, ep.Address, ep.Type, ep.Direction,
					ep.MaxPacketSize, epInterval(ep), model.FormatBPS(ep.Bandwidth()))
			}
		}
		fmt.Fprintln(w)
	}
}

func deviceIcon(d *model.Device) string {
	switch {
	case !d.Configured:
		return "⚠"
	case d.IsHub:
		return "Hub"
	default:
		return "Dev"
	}
}

func deviceStatus(d *model.Device) string {
	if !d.Configured {
		return " [NOT CONFIGURED]"
	}
	if bw := d.PeriodicBandwidth(); bw > 0 {
		return fmt.Sprintf(" [%s]", model.FormatBPS(bw))
	}
	return ""
}

func epInterval(ep model.Endpoint) string {
	if ep.IntervalLabel != "" {
		return ep.IntervalLabel
	}
	return fmt.Sprintf("%dus", ep.IntervalUS)
}

// Recommend writes the best-bus listing, one section per pool class,
// each sorted by descending availability.
func Recommend(w io.Writer, top *model.Topology) {
	fmt.Fprintln(w, "Best Buses for New Devices")
	fmt.Fprintln(w, "==========================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Note: Bandwidth is shared across the entire bus, not per-hub.")
	fmt.Fprintln(w, "All devices behind a hub share the bus bandwidth pool.")
	fmt.Fprintln(w)

	section := func(title string, class model.PoolClass) {
		fmt.Fprintf(w, "%s:\n", title)
		for _, bus := range busesByAvailability(top, class) {
			fmt.Fprintf(w, "  %s - %s available (%.1f%% used)\n",
				bus.DisplayName(), model.FormatBPS(bus.Pool.Available()), bus.Pool.UsagePercent())
		}
	}
	section("USB 3.x Buses (SuperSpeed)", model.PoolUSB3)
	fmt.Fprintln(w)
	section("USB 2.0 Buses (High Speed)", model.PoolUSB2)
}

func busesByAvailability(top *model.Topology, class model.PoolClass) []*model.Bus {
	var out []*model.Bus
	for _, bus := range top.BusesSorted() {
		if bus.Pool.Class == class {
			out = append(out, bus)
		}
	}
	// BusesSorted gave ascending bus numbers; the stable sort keeps
	// that as the tie-break.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pool.Available() > out[j].Pool.Available()
	})
	return out
}

// Warnings writes the non-fatal per-device problems of a refresh.
func Warnings(w io.Writer, warnings []error) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "warning: %v\n", warning)
	}
}

// Bar renders a usage bar of the given width. Over 100% fills
// completely.
func Bar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// Changes writes the New/Removed lines of a diff with discovery
// ordinals, used by watch mode after each refresh.
func Changes(w io.Writer, top *model.Topology, res *diff.Result) {
	for _, d := range top.DevicesTreeOrder() {
		path := d.Path.String()
		if res.Class(path) != diff.New {
			continue
		}
		fmt.Fprintf(w, "NEW #%d %s %s (%s)\n", res.Ordinal(path), path, d.DisplayName(), d.VIDPID())
	}
	var removed []string
	for path, entry := range res.ByPath {
		if entry.Class == diff.Removed {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	for _, path := range removed {
		fmt.Fprintf(w, "REMOVED %s\n", path)
	}
}
