// Package labels implements label management and config file
// commands.
package labels

import (
	"context"
	"fmt"
	"os"

	"github.com/paularlott/cli"

	"usbbw/cmd/report"
	"usbbw/internal/config"
	"usbbw/internal/log"
)

// Commands returns the label management command group.
func Commands() []*cli.Command {
	return []*cli.Command{
		setCommand(),
		initCommand(),
		generateCommand(),
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:        "set",
		Usage:       "Set a label for a device identity",
		Description: "Persist a label for a VID:PID or VID:PID:Serial key in the config file's products map. An empty label removes the entry.",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "key", Required: true},
			&cli.StringArg{Name: "label", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			key := cmd.GetStringArg("key")
			label := cmd.GetStringArg("label")
			path := cmd.GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}

			if err := config.SetProductLabel(path, key, label); err != nil {
				return err
			}
			log.Info("label stored", "key", key, "label", label, "path", path)
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:        "init",
		Usage:       "Print an example config file",
		Description: "Print a commented starter configuration to stdout",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Print(exampleConfig)
			return nil
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:        "generate",
		Usage:       "Generate a config from the live topology",
		Description: "Seed a configuration with one product entry per attached device and a rule per physical port, for hand editing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Usage:   "Write to a file instead of stdout",
				Aliases: []string{"o"},
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			snap, err := report.Snapshot(ctx, cmd)
			if err != nil {
				return err
			}
			generated := config.Generate(snap.Topology)

			out := cmd.GetString("output")
			if out == "" {
				data, err := config.Encode(generated)
				if err != nil {
					return err
				}
				os.Stdout.Write(data)
				return nil
			}
			if err := config.Write(out, generated); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Config written to %s\n", out)
			fmt.Fprintln(os.Stderr, "Edit the file to customize labels, then point USBBW_CONFIG at it")
			fmt.Fprintf(os.Stderr, "or copy it to %s\n", config.DefaultPath())
			return nil
		},
	}
}

const exampleConfig = `# usbbw configuration.
#
# Layers can inherit from other files; the child wins on conflicts,
# maps merge key by key, and lists concatenate parent-first.
# inherit: shared.yaml

settings:
  refresh_ms: 1000
  theme: dark
  use_bits: true

# Labels by device identity. The serial-qualified key wins over the
# plain VID:PID key.
products:
  "0d28:0204:000440012345": "CI Dev Board"
  "046d:085e": "Desk Camera"

# Labels by physical port position (ACPI physical_location).
physical_ports:
  - panel: left
    vertical_position: upper
    label: "Left Upper Port"

# Labels by controller PCI address and bus number.
controllers:
  "0000:00:14.0": "Main xHCI"
buses:
  "1": "Front Ports"

mermaid:
  hide_paths: []
  filter_vendors: []
  collapse_single_child_hubs: false
`
