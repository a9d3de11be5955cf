// Package watch implements the interactive terminal view: periodic
// refreshes with usage bars and markers for newly attached devices.
package watch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/paularlott/cli"
	"golang.org/x/term"

	"usbbw/internal/config"
	"usbbw/internal/diff"
	"usbbw/internal/log"
	"usbbw/internal/model"
	"usbbw/internal/refresh"
	"usbbw/internal/render"
	"usbbw/internal/sysfs"
)

// Command returns the watch command.
func Command() *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Usage:       "Watch the topology live",
		Description: "Refresh the topology periodically and highlight devices that appear or disappear. Keys: q quit, r refresh now, m mark all seen.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Refresh interval in seconds (overrides settings.refresh_ms)",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.LoadOrDefault(cmd.GetString("config"))
			eng := refresh.NewEngine(sysfs.NewReader(), cfg)

			interval := time.Duration(cfg.Settings.RefreshMS) * time.Millisecond
			if secs := cmd.GetInt("interval"); secs > 0 {
				interval = time.Duration(secs) * time.Second
			}
			if interval < time.Second {
				// The scheduler resolution is one second.
				interval = time.Second
			}

			return run(ctx, eng, interval, cfg.Settings)
		},
	}
}

// view serializes frame drawing and carries the mark-seen state
// between snapshots.
type view struct {
	mu       sync.Mutex
	interval time.Duration
	settings config.Settings
	snap     *refresh.Snapshot
	markSeen bool
}

func run(ctx context.Context, eng *refresh.Engine, interval time.Duration, settings config.Settings) error {
	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := &view{interval: interval, settings: settings}

	// One manual refresh before the first tick so the screen is not
	// empty for a whole interval.
	snap, err := eng.Refresh(ctx)
	if err != nil {
		return err
	}
	v.update(snap)

	redraw := make(chan struct{}, 1)
	if interactive {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("entering raw mode: %w", err)
		}
		defer term.Restore(fd, old)

		go readKeys(cancel, redraw, v)
	}

	go eng.Run(ctx, interval, v.update)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-redraw:
			snap, err := eng.Refresh(ctx)
			if err != nil {
				log.Error("manual refresh failed", "err", err)
				continue
			}
			v.update(snap)
		}
	}
}

// update replaces the current snapshot and repaints. A new snapshot
// resets mark-seen so freshly appeared devices get highlighted again.
func (v *view) update(snap *refresh.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap = snap
	v.markSeen = false
	v.draw()
}

func (v *view) acknowledge() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markSeen = true
	v.draw()
}

// readKeys handles single-key commands in raw mode.
func readKeys(cancel context.CancelFunc, redraw chan<- struct{}, v *view) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			cancel()
			return
		}
		switch buf[0] {
		case 'q', 3: // q or Ctrl-C
			cancel()
			return
		case 'r':
			select {
			case redraw <- struct{}{}:
			default:
			}
		case 'm':
			v.acknowledge()
		}
	}
}

// draw paints one frame. Caller holds v.mu. Raw mode needs explicit
// carriage returns, so the frame is assembled first and rewritten.
func (v *view) draw() {
	snap := v.snap
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	highlight, reset := themeHighlight(v.settings.Theme)

	var b strings.Builder
	fmt.Fprintf(&b, "usbbw watch - every %s - %s - q quit, r refresh, m mark seen\n",
		v.interval, snap.Taken.Format("15:04:05"))
	fmt.Fprintln(&b)

	for _, bus := range snap.Topology.BusesSorted() {
		pool := bus.Pool
		fmt.Fprintf(&b, "%s (%s) %s %5.1f%%  %s / %s\n",
			bus.DisplayName(), pool.Class,
			render.Bar(pool.UsagePercent(), 20), pool.UsagePercent(),
			v.rate(pool.Used), v.rate(pool.Capacity))

		for _, d := range bus.DevicesTreeOrder() {
			path := d.Path.String()
			marker := "   "
			isNew := !v.markSeen && snap.Diff.Class(path) == diff.New
			if isNew {
				marker = fmt.Sprintf("#%-2d", snap.Diff.Ordinal(path))
			}
			indent := strings.Repeat("  ", d.Path.Depth()+1)
			rest := truncateLine(fmt.Sprintf("%s%s (%s)%s",
				indent, d.DisplayName(), d.VIDPID(), v.status(d)), width-4)
			if isNew {
				marker = highlight + marker + reset
			}
			b.WriteString(" " + marker + rest + "\n")
		}
	}

	if snap.Diff.RemovedCount > 0 {
		fmt.Fprintf(&b, "\n%d device(s) removed since last refresh\n", snap.Diff.RemovedCount)
	}

	// Clear screen, home cursor, then CRLF line endings for raw mode.
	frame := strings.ReplaceAll(b.String(), "\n", "\r\n")
	fmt.Print("\x1b[2J\x1b[H" + frame)
}

// rate formats bandwidth honoring the use_bits display setting.
func (v *view) rate(bps uint64) string {
	return model.FormatRate(bps, v.settings.UseBits)
}

func (v *view) status(d *model.Device) string {
	if !d.Configured {
		return " [NOT CONFIGURED]"
	}
	if bw := d.PeriodicBandwidth(); bw > 0 {
		return " [" + v.rate(bw) + "]"
	}
	return ""
}

// themeHighlight picks the ANSI color for NEW markers. The dark theme
// uses bright yellow, light uses blue, anything else goes plain.
func themeHighlight(theme string) (string, string) {
	switch theme {
	case "dark":
		return "\x1b[93m", "\x1b[0m"
	case "light":
		return "\x1b[34m", "\x1b[0m"
	default:
		return "", ""
	}
}

// truncateLine cuts a display line to width runes, never splitting a
// multibyte character.
func truncateLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
