package render

import (
	"fmt"
	"strings"

	"usbbw/internal/config"
	"usbbw/internal/model"
)

// Mermaid renders the topology as a flowchart. Config options can
// hide device subtrees, restrict output to certain vendors, and
// collapse hubs with a single child into a direct edge.
func Mermaid(top *model.Topology, cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, ctrl := range top.ControllersSorted() {
		ctrlNode := nodeID("c", ctrl.ID)
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", ctrlNode, escape(ctrl.DisplayName()))

		for _, busNum := range []int{ctrl.USB2Bus, ctrl.USB3Bus} {
			bus, ok := top.Buses[busNum]
			if !ok {
				continue
			}
			busNode := nodeID("b", fmt.Sprint(bus.Num))
			fmt.Fprintf(&b, "    %s[\"%s<br/>%s / %s\"]\n",
				busNode, escape(bus.DisplayName()),
				model.FormatBPS(bus.Pool.Used), model.FormatBPS(bus.Pool.Capacity))
			fmt.Fprintf(&b, "    %s --> %s\n", ctrlNode, busNode)

			writeDevices(&b, bus, cfg, busNode)
		}
	}
	return b.String()
}

// writeDevices emits the device subtrees of one bus.
func writeDevices(b *strings.Builder, bus *model.Bus, cfg *config.Config, busNode string) {
	var walk func(d *model.Device, parentNode string)
	walk = func(d *model.Device, parentNode string) {
		path := d.Path.String()
		if cfg.HidePath(path) {
			return
		}

		children := childDevices(bus, d)

		// A collapsed hub contributes an edge, not a node.
		if cfg.Mermaid.CollapseSingleChildHubs && d.IsHub && len(children) == 1 {
			walk(children[0], parentNode)
			return
		}

		node := nodeID("d", path)
		show := cfg.ShowVendor(d.Manufacturer)
		if show {
			label := escape(d.DisplayName()) + "<br/>" + d.VIDPID()
			if bw := d.PeriodicBandwidth(); bw > 0 {
				label += "<br/>" + model.FormatBPS(bw)
			}
			if !d.Configured {
				label += "<br/>NOT CONFIGURED"
			}
			fmt.Fprintf(b, "    %s[\"%s\"]\n", node, label)
			fmt.Fprintf(b, "    %s --> %s\n", parentNode, node)
		} else {
			// Filtered devices stay invisible but their children still
			// attach to the nearest visible ancestor.
			node = parentNode
		}
		for _, c := range children {
			walk(c, node)
		}
	}

	for _, d := range bus.DevicesTreeOrder() {
		if d.Path.Depth() == 0 {
			walk(d, busNode)
		}
	}
}

func childDevices(bus *model.Bus, d *model.Device) []*model.Device {
	var out []*model.Device
	for _, cp := range d.Children {
		if c, ok := bus.Device(cp); ok {
			out = append(out, c)
		}
	}
	return out
}

// Markdown wraps the diagram in a fenced block with a bandwidth
// summary table, ready for pasting into a wiki.
func Markdown(top *model.Topology, cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("# USB Topology\n\n")
	b.WriteString("```mermaid\n")
	b.WriteString(Mermaid(top, cfg))
	b.WriteString("```\n\n")

	b.WriteString("## Bandwidth\n\n")
	b.WriteString("| Bus | Pool | Used | Capacity | Available |\n")
	b.WriteString("|-----|------|------|----------|-----------|\n")
	for _, bus := range top.BusesSorted() {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			bus.DisplayName(), bus.Pool.Class,
			model.FormatBPS(bus.Pool.Used), model.FormatBPS(bus.Pool.Capacity),
			model.FormatBPS(bus.Pool.Available()))
	}
	return b.String()
}

// nodeID builds a mermaid-safe node identifier from a path-like key.
func nodeID(prefix, key string) string {
	r := strings.NewReplacer("-", "_", ".", "_", ":", "_")
	return prefix + r.Replace(key)
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
