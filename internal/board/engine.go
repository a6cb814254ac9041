// Package board is the scheduling placement engine behind the dispatch board:
// the item store, pointer snapping, drag sessions with a ghost preview,
// optimistic commits with rollback, and the job status lifecycle.
package board

import (
	"time"

	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	Grid                  SnapGrid
	MinimumVisibleMinutes int
	HoverFrame            time.Duration
	Overlap               OverlapPolicy
	Location              *time.Location
}

// Engine bundles the board components around one Store.
type Engine struct {
	Store     *Store
	Locks     *ItemLocks
	Resolver  Resolver
	Commit    *CommitPipeline
	Drag      *DragManager
	Hover     *HoverThrottle
	Lifecycle *Lifecycle

	opts Options
}

// NewEngine wires the board around persister and notifier.
func NewEngine(opts Options, persister Persister, notifier Notifier, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MinimumVisibleMinutes <= 0 {
		opts.MinimumVisibleMinutes = DefaultMinimumVisibleMinutes
	}

	store := NewStore(logger.Named("store"))
	locks := NewItemLocks()
	resolver := NewResolver(opts.Grid)
	resolver.Location = opts.Location
	opts.Grid = resolver.Grid
	pipeline := NewCommitPipeline(logger.Named("commit"), store, locks, persister, notifier)
	drag := NewDragManager(logger.Named("drag"), store, resolver, locks, pipeline, opts.Overlap)

	return &Engine{
		Store:     store,
		Locks:     locks,
		Resolver:  resolver,
		Commit:    pipeline,
		Drag:      drag,
		Hover:     NewHoverThrottle(logger.Named("hover"), drag, opts.HoverFrame),
		Lifecycle: NewLifecycle(logger.Named("lifecycle"), store, locks, persister, notifier),
		opts:      opts,
	}
}

// ViewParams returns view settings for date and mode using the engine's grid.
func (e *Engine) ViewParams(date time.Time, mode ViewMode) ViewParams {
	return ViewParams{
		Date:                  date,
		Mode:                  mode,
		StartHour:             e.opts.Grid.StartHour,
		EndHour:               e.opts.Grid.EndHour,
		MinimumVisibleMinutes: e.opts.MinimumVisibleMinutes,
		Location:              e.opts.Location,
	}
}

// Project renders the current Store and drag session.
func (e *Engine) Project(v ViewParams, customers CustomerNames) View {
	var session *DragSession
	if s, ok := e.Drag.Current(); ok {
		session = &s
	}
	return Project(e.Store.Snapshot(), session, v, customers)
}
