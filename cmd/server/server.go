// Package server implements the long-running daemon: periodic refresh
// into the history database plus the MCP endpoint over HTTP.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"usbbw/internal/config"
	"usbbw/internal/history"
	"usbbw/internal/log"
	"usbbw/internal/mcp"
	"usbbw/internal/refresh"
	"usbbw/internal/sysfs"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Start the usbbw server",
		Description: "Refresh the topology on an interval, record plug events to the history database, and expose MCP tools over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "listen",
				Usage:        "Address to listen on",
				DefaultValue: ":8374",
				EnvVars:      []string{"USBBW_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for the history database; empty disables history",
				EnvVars: []string{"USBBW_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "mcp-token",
				Usage:   "Bearer token required on the MCP endpoint; empty disables auth",
				EnvVars: []string{"USBBW_MCP_TOKEN"},
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Refresh interval in seconds (overrides settings.refresh_ms)",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			configPath := cmd.GetString("config")
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg := config.LoadOrDefault(configPath)
			eng := refresh.NewEngine(sysfs.NewReader(), cfg)

			var store *history.Store
			if dataDir := cmd.GetString("data-dir"); dataDir != "" {
				var err error
				store, err = history.Open(dataDir)
				if err != nil {
					log.Error("Failed to open history database", "error", err)
					return err
				}
				defer store.Close()
				eng.SetSink(store)
				log.Info("History database open", "path", store.Path())
			} else {
				log.Info("History disabled (no data directory)")
			}

			interval := time.Duration(cfg.Settings.RefreshMS) * time.Millisecond
			if secs := cmd.GetInt("interval"); secs > 0 {
				interval = time.Duration(secs) * time.Second
			}
			if interval < time.Second {
				interval = time.Second
			}

			token := cmd.GetString("mcp-token")
			mcpServer := mcp.NewServer(eng, store, configPath, token, config.SetProductLabel)

			return run(ctx, eng, mcpServer, cmd.GetString("listen"), interval, token != "")
		},
	}
}

func run(ctx context.Context, eng *refresh.Engine, mcpServer *mcp.Server, addr string, interval time.Duration, authEnabled bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", mcpServer.HandleRequest)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Refresh loop runs until shutdown; snapshots flow to the sink
	// inside the engine.
	go eng.Run(ctx, interval, func(*refresh.Snapshot) {})

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		log.Info("Shutting down server...")
		cancel()
		server.Close()
	}()

	log.Info("Starting usbbw server", "addr", addr, "interval", interval)
	log.Info("MCP available", "url", "http://localhost"+addr+"/mcp")
	if authEnabled {
		log.Info("MCP authentication enabled")
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}
