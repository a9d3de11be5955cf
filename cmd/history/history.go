// Package history implements the CLI views over the sighting
// database written by the server.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paularlott/cli"

	"usbbw/internal/history"
)

// Commands returns the history command group.
func Commands() []*cli.Command {
	return []*cli.Command{
		devicesCommand(),
		eventsCommand(),
	}
}

func dataDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:         "data-dir",
		Usage:        "Directory holding the history database",
		DefaultValue: defaultDataDir(),
		EnvVars:      []string{"USBBW_DATA_DIR"},
	}
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:        "devices",
		Usage:       "List every device ever seen",
		Description: "Print all recorded device identities with first and last sighting times, most recent first. An optional key argument filters to one VID:PID or VID:PID:Serial identity.",
		Flags:       []cli.Flag{dataDirFlag()},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "key"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			store, err := history.Open(cmd.GetString("data-dir"))
			if err != nil {
				return err
			}
			defer store.Close()

			sightings, err := store.Sightings(ctx)
			if err != nil {
				return err
			}
			if key := cmd.GetStringArg("key"); key != "" {
				sightings = filterByKey(sightings, key)
			}
			if len(sightings) == 0 {
				fmt.Println("No devices recorded yet. Run the server to collect history.")
				return nil
			}

			for _, sg := range sightings {
				fmt.Printf("%s  %04x:%04x  %-30s %s\n",
					sg.LastSeen.Local().Format("2006-01-02 15:04:05"),
					sg.VendorID, sg.ProductID, truncate(sg.Name, 30), sg.Path)
			}
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:        "events",
		Usage:       "List recent plug and unplug events",
		Flags: []cli.Flag{
			dataDirFlag(),
			&cli.IntFlag{
				Name:         "limit",
				Usage:        "Maximum number of events to show",
				DefaultValue: 50,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			store, err := history.Open(cmd.GetString("data-dir"))
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Events(ctx, cmd.GetInt("limit"))
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events recorded yet.")
				return nil
			}

			for _, ev := range events {
				fmt.Printf("%s  %-9s %-12s %s\n",
					ev.Time.Local().Format("2006-01-02 15:04:05"),
					strings.ToUpper(ev.Class), ev.Path, ev.ConfigKey)
			}
			return nil
		},
	}
}

// filterByKey keeps sightings whose config key matches exactly, or
// whose VID:PID prefix matches when the query has no serial part.
func filterByKey(sightings []history.Sighting, key string) []history.Sighting {
	var out []history.Sighting
	for _, sg := range sightings {
		if sg.ConfigKey == key || strings.HasPrefix(sg.ConfigKey, key+":") {
			out = append(out, sg)
		}
	}
	return out
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "usbbw")
	}
	return "usbbw-data"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
