// Package refresh drives the snapshot pipeline: read sysfs, allocate
// bandwidth pools, resolve labels, and diff against the previous
// snapshot. One Engine owns the process-scoped diff state.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"usbbw/internal/alloc"
	"usbbw/internal/config"
	"usbbw/internal/diff"
	"usbbw/internal/log"
	"usbbw/internal/model"
	"usbbw/internal/sysfs"
)

// Snapshot is one fully annotated refresh result handed to
// presentation layers read-only.
type Snapshot struct {
	Topology *model.Topology
	Diff     *diff.Result
	Warnings []error
	Taken    time.Time
	Took     time.Duration
}

// Sink receives completed snapshots, typically the history store. A
// sink error is logged, never fatal to the refresh.
type Sink interface {
	RecordSnapshot(ctx context.Context, snap *Snapshot) error
}

// Engine runs refresh cycles. Safe for concurrent callers: the whole
// pipeline runs under one lock since the diff tracker is stateful.
type Engine struct {
	mu      sync.Mutex
	reader  *sysfs.Reader
	cfg     *config.Config
	tracker *diff.Tracker
	sink    Sink
}

// NewEngine builds an engine with an empty diff tracker.
func NewEngine(reader *sysfs.Reader, cfg *config.Config) *Engine {
	return &Engine{
		reader:  reader,
		cfg:     cfg,
		tracker: diff.NewTracker(),
	}
}

// SetSink attaches a snapshot sink. Must be called before Run.
func (e *Engine) SetSink(s Sink) {
	e.sink = s
}

// Refresh runs one synchronous cycle and returns the annotated
// snapshot. Per-device read problems come back in Snapshot.Warnings;
// only a failure to read the device directory itself is an error.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	top, warnings, err := e.reader.ReadTopology()
	if err != nil {
		return nil, err
	}

	alloc.Allocate(top)
	config.ApplyLabels(e.cfg, top)
	result := e.tracker.Diff(top)

	snap := &Snapshot{
		Topology: top,
		Diff:     result,
		Warnings: warnings,
		Taken:    start,
		Took:     time.Since(start),
	}

	if e.sink != nil {
		if err := e.sink.RecordSnapshot(ctx, snap); err != nil {
			log.Warn("snapshot sink failed", "err", err)
		}
	}

	log.Debug("refresh complete",
		"devices", top.DeviceCount(),
		"new", result.NewCount,
		"removed", result.RemovedCount,
		"took", snap.Took)
	return snap, nil
}

// Run refreshes periodically until the context is cancelled, passing
// each snapshot to fn. A cycle that is still running when the next
// tick fires is not overlapped; the tick is skipped. Intervals below
// one second are rounded up by the scheduler.
func (e *Engine) Run(ctx context.Context, interval time.Duration, fn func(*Snapshot)) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		snap, err := e.Refresh(ctx)
		if err != nil {
			log.Error("refresh failed", "err", err)
			return
		}
		fn(snap)
	}))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
}
