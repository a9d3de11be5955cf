// Package export implements diagram export of the topology.
package export

import (
	"context"
	"fmt"
	"os"

	"github.com/paularlott/cli"

	"usbbw/cmd/report"
	"usbbw/internal/config"
	"usbbw/internal/render"
)

// Command returns the export command.
func Command() *cli.Command {
	return &cli.Command{
		Name:        "export",
		Usage:       "Export the topology as a Mermaid diagram",
		Description: "Render the current topology as a Mermaid flowchart, optionally wrapped in a Markdown document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Usage:   "Write to a file instead of stdout",
				Aliases: []string{"o"},
			},
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: "Wrap the diagram in a Markdown document with a bandwidth table",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.LoadOrDefault(cmd.GetString("config"))
			snap, err := report.Snapshot(ctx, cmd)
			if err != nil {
				return err
			}

			var content string
			if cmd.GetBool("markdown") {
				content = render.Markdown(snap.Topology, cfg)
			} else {
				content = render.Mermaid(snap.Topology, cfg)
			}

			if out := cmd.GetString("output"); out != "" {
				if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}
				fmt.Fprintf(os.Stderr, "Diagram written to %s\n", out)
				return nil
			}
			fmt.Print(content)
			return nil
		},
	}
}
