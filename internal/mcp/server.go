// Package mcp exposes the topology and bandwidth queries as MCP tools
// over HTTP, so agents can inspect the USB tree and manage labels.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"usbbw/internal/alloc"
	"usbbw/internal/history"
	"usbbw/internal/log"
	"usbbw/internal/model"
	"usbbw/internal/refresh"
	"usbbw/internal/render"
)

// Server wraps the MCP server around a refresh engine. Every tool
// call works on a fresh snapshot.
type Server struct {
	mcpServer   *mcp.Server
	engine      *refresh.Engine
	store       *history.Store
	configPath  string
	bearerToken string
}

// LabelWriter persists a product label; wired to the config package
// by the command layer to keep this package free of file concerns.
type LabelWriter func(path, key, label string) error

// NewServer creates the MCP server. store may be nil when history is
// disabled.
func NewServer(engine *refresh.Engine, store *history.Store, configPath, bearerToken string, writeLabel LabelWriter) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("usbbw", "1.0.0"),
		engine:      engine,
		store:       store,
		configPath:  configPath,
		bearerToken: bearerToken,
	}
	s.registerTools(writeLabel)
	return s
}

func (s *Server) registerTools(writeLabel LabelWriter) {
	s.mcpServer.RegisterTool(
		mcp.NewTool("usb_summary", "Get the per-bus USB periodic bandwidth summary: pool class, used, capacity, available, device count"),
		s.handleSummary,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("usb_devices", "List the USB device tree with bandwidth reservations",
			mcp.String("mode", "Listing mode: 'all' (default) or 'periodic' for only devices reserving bandwidth"),
		),
		s.handleDevices,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("usb_recommend", "Recommend the best bus for a new device by available periodic bandwidth",
			mcp.String("required_mbps", "Bandwidth the new device needs, in Mbps", mcp.Required()),
			mcp.String("class", "Pool class: 'usb2' (default) or 'usb3'"),
		),
		s.handleRecommend,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("usb_label_set", "Set a persistent human label for a device identity",
			mcp.String("key", "Device config key, VID:PID or VID:PID:Serial", mcp.Required()),
			mcp.String("label", "The label to store; empty removes the entry", mcp.Required()),
		),
		func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			return s.handleLabelSet(ctx, req, writeLabel)
		},
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("usb_history", "List recent device plug/unplug events from the history database",
			mcp.String("limit", "Maximum events to return, default 20"),
		),
		s.handleHistory,
	)
}

func (s *Server) handleSummary(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	snap, err := s.engine.Refresh(ctx)
	if err != nil {
		log.Error("MCP summary refresh failed", "error", err)
		return nil, mcp.NewToolErrorInternal("refresh failed: " + err.Error())
	}

	var b strings.Builder
	render.Summary(&b, snap.Topology)
	render.Warnings(&b, snap.Warnings)
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleDevices(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	mode := req.StringOr("mode", "all")
	if mode != "all" && mode != "periodic" {
		return nil, mcp.NewToolErrorInvalidParams("mode must be 'all' or 'periodic'")
	}

	snap, err := s.engine.Refresh(ctx)
	if err != nil {
		log.Error("MCP device list refresh failed", "error", err)
		return nil, mcp.NewToolErrorInternal("refresh failed: " + err.Error())
	}

	var b strings.Builder
	render.DeviceList(&b, snap.Topology, mode == "periodic", true)
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleRecommend(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	mbpsStr, err := req.String("required_mbps")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("required_mbps is required: " + err.Error())
	}
	mbps, err := strconv.ParseFloat(mbpsStr, 64)
	if err != nil || mbps < 0 {
		return nil, mcp.NewToolErrorInvalidParams("required_mbps must be a non-negative number")
	}

	class := model.PoolUSB2
	if c := req.StringOr("class", "usb2"); c == "usb3" {
		class = model.PoolUSB3
	} else if c != "usb2" {
		return nil, mcp.NewToolErrorInvalidParams("class must be 'usb2' or 'usb3'")
	}

	snap, err := s.engine.Refresh(ctx)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("refresh failed: " + err.Error())
	}

	requiredBPS := uint64(mbps * 1_000_000)
	choices := alloc.BestBuses(snap.Topology, requiredBPS, class)
	if len(choices) == 0 {
		return mcp.NewToolResponseText(fmt.Sprintf(
			"No %s bus has %s of periodic bandwidth available.", class, model.FormatBPS(requiredBPS))), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Buses with at least %s available (%s):\n", model.FormatBPS(requiredBPS), class)
	for _, c := range choices {
		fmt.Fprintf(&b, "  %s - %s available (%.1f%% used)\n",
			c.Bus.DisplayName(), model.FormatBPS(c.Available), c.Bus.Pool.UsagePercent())
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleLabelSet(ctx context.Context, req *mcp.ToolRequest, writeLabel LabelWriter) (*mcp.ToolResponse, error) {
	key, err := req.String("key")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("key is required: " + err.Error())
	}
	label, err := req.String("label")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("label is required: " + err.Error())
	}

	if err := writeLabel(s.configPath, key, label); err != nil {
		log.Error("MCP label write failed", "error", err, "key", key)
		return nil, mcp.NewToolErrorInternal("writing label: " + err.Error())
	}

	log.Info("MCP label stored", "key", key, "label", label)
	if label == "" {
		return mcp.NewToolResponseText(fmt.Sprintf("Label removed for %s", key)), nil
	}
	return mcp.NewToolResponseText(fmt.Sprintf("Label for %s set to %q", key, label)), nil
}

func (s *Server) handleHistory(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	if s.store == nil {
		return mcp.NewToolResponseText("History is disabled; start the server with a data directory to enable it."), nil
	}

	limit := 20
	if v, err := strconv.Atoi(req.StringOr("limit", "20")); err == nil && v > 0 {
		limit = v
	}
	events, err := s.store.Events(ctx, limit)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("querying history: " + err.Error())
	}
	if len(events) == 0 {
		return mcp.NewToolResponseText("No events recorded yet."), nil
	}

	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s %s (%s)\n",
			ev.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(ev.Class), ev.Path, ev.ConfigKey)
	}
	return mcp.NewToolResponseText(b.String()), nil
}

// HandleRequest serves MCP over HTTP with optional bearer token
// authentication.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != s.bearerToken {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}
