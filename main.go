package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"usbbw/cmd/export"
	"usbbw/cmd/history"
	"usbbw/cmd/labels"
	"usbbw/cmd/report"
	"usbbw/cmd/server"
	"usbbw/cmd/watch"
	"usbbw/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "usbbw",
		Version:     version,
		Usage:       "USB topology and bandwidth diagnostics",
		Description: "Inspect the USB device tree from sysfs, account periodic bandwidth per bus, and recommend where to plug new devices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the config file",
				EnvVars: []string{"USBBW_CONFIG"},
				Global:  true,
			},
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"USBBW_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"USBBW_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logLevel := cmd.GetString("log-level")
			logFormat := cmd.GetString("log-format")
			log.Configure(logLevel, logFormat)
			return ctx, nil
		},
		Commands: append(
			report.Commands(),
			watch.Command(),
			export.Command(),
			server.Command(),
			&cli.Command{
				Name:        "label",
				Usage:       "Label and config management commands",
				Description: "Manage device labels and configuration files",
				Commands:    labels.Commands(),
			},
			&cli.Command{
				Name:        "history",
				Usage:       "Device history commands",
				Description: "Query the sighting database written by the server",
				Commands:    history.Commands(),
			},
		),
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
