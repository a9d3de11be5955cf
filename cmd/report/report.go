// Package report implements the batch reporting commands: summary,
// list, and recommend. Each runs one refresh cycle and prints the
// result.
package report

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/paularlott/cli"

	"usbbw/internal/alloc"
	"usbbw/internal/config"
	"usbbw/internal/model"
	"usbbw/internal/refresh"
	"usbbw/internal/render"
	"usbbw/internal/sysfs"
)

// Snapshot loads the config named by the global --config flag and runs
// one refresh. Config trouble degrades to an unlabeled topology;
// per-device warnings go to stderr and the report still prints.
func Snapshot(ctx context.Context, cmd *cli.Command) (*refresh.Snapshot, error) {
	cfg := config.LoadOrDefault(cmd.GetString("config"))
	eng := refresh.NewEngine(sysfs.NewReader(), cfg)

	snap, err := eng.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	render.Warnings(os.Stderr, snap.Warnings)
	return snap, nil
}

// Commands returns the report command group.
func Commands() []*cli.Command {
	return []*cli.Command{
		summaryCommand(),
		listCommand(),
		recommendCommand(),
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:        "summary",
		Usage:       "Show per-bus bandwidth usage",
		Description: "Print the periodic bandwidth pool of every bus: used, capacity, and what is left for new devices",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			snap, err := Snapshot(ctx, cmd)
			if err != nil {
				return err
			}
			render.Summary(os.Stdout, snap.Topology)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List the USB device tree",
		Description: "Print every device per bus with its bandwidth reservation and configuration status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "periodic-only",
				Usage: "Only show devices that reserve periodic bandwidth",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Show power, serial, and per-endpoint detail",
				Aliases: []string{"v"},
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			snap, err := Snapshot(ctx, cmd)
			if err != nil {
				return err
			}
			render.DeviceList(os.Stdout, snap.Topology, cmd.GetBool("periodic-only"), cmd.GetBool("verbose"))
			return nil
		},
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:        "recommend",
		Usage:       "Recommend buses for a new device",
		Description: "Rank buses by available periodic bandwidth; optionally filter to buses that fit a required rate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "require",
				Usage: "Required bandwidth in Mbps; only buses that fit are listed",
			},
			&cli.StringFlag{
				Name:         "class",
				Usage:        "Pool class to query: usb2 or usb3",
				DefaultValue: "usb2",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			snap, err := Snapshot(ctx, cmd)
			if err != nil {
				return err
			}

			require := cmd.GetString("require")
			if require == "" {
				render.Recommend(os.Stdout, snap.Topology)
				return nil
			}

			mbps, err := strconv.ParseFloat(require, 64)
			if err != nil || mbps < 0 {
				return fmt.Errorf("invalid --require value %q", require)
			}
			class := model.PoolUSB2
			switch cmd.GetString("class") {
			case "usb2":
			case "usb3":
				class = model.PoolUSB3
			default:
				return fmt.Errorf("invalid --class value %q", cmd.GetString("class"))
			}

			requiredBPS := uint64(mbps * 1_000_000)
			choices := alloc.BestBuses(snap.Topology, requiredBPS, class)
			if len(choices) == 0 {
				fmt.Printf("No %s bus has %s available.\n", class, model.FormatBPS(requiredBPS))
				return nil
			}
			for _, c := range choices {
				fmt.Printf("%s - %s available (%.1f%% used)\n",
					c.Bus.DisplayName(), model.FormatBPS(c.Available), c.Bus.Pool.UsagePercent())
			}
			return nil
		},
	}
}
