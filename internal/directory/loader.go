// Package directory loads the board window from the job directory and the
// synced calendar into the board's in-memory store.
package directory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fieldboard/internal/board"
	"fieldboard/internal/model"
)

// Source is the read side of the job directory.
type Source interface {
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	ListScheduledJobs(ctx context.Context, from, to time.Time) ([]model.Job, error)
	ListUnscheduledJobs(ctx context.Context) ([]model.Job, error)
	ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// Primer preloads customer names for the loaded jobs.
type Primer interface {
	Prime(ctx context.Context, ids []string) error
}

// Loader fills a board.Store with the items of one view window and remembers
// that window so it can be reloaded after the directory changes.
type Loader struct {
	logger          *zap.SugaredLogger
	src             Source
	target          *board.Store
	customers       Primer
	defaultDuration time.Duration

	// loadMu serializes loads so an older directory read never lands on top
	// of a newer one.
	loadMu sync.Mutex

	mu         sync.Mutex
	current    *board.ViewParams
	generation uint64
}

// NewLoader creates a loader. customers may be nil.
func NewLoader(logger *zap.SugaredLogger, src Source, target *board.Store, customers Primer, defaultDuration time.Duration) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Loader{
		logger:          logger,
		src:             src,
		target:          target,
		customers:       customers,
		defaultDuration: defaultDuration,
	}
}

// Ensure loads v unless it covers the same window as the last load.
func (l *Loader) Ensure(ctx context.Context, v board.ViewParams) error {
	l.mu.Lock()
	cur := l.current
	l.mu.Unlock()

	if cur != nil {
		from, to := cur.Window()
		nf, nt := v.Window()
		if from.Equal(nf) && to.Equal(nt) {
			return nil
		}
	}
	return l.Load(ctx, v)
}

// Reload loads the last window again. It does nothing before the first load.
func (l *Loader) Reload(ctx context.Context) error {
	l.mu.Lock()
	cur := l.current
	l.mu.Unlock()

	if cur == nil {
		return nil
	}
	return l.Load(ctx, *cur)
}

// Generation counts completed loads.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Load fetches technicians, jobs and calendar events for the window of v and
// replaces the store contents with them. Items saved or being saved from the
// board since the read began keep their board state.
func (l *Loader) Load(ctx context.Context, v board.ViewParams) error {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	from, to := v.Window()
	mark := l.target.WriteMark()

	var (
		techs     []model.Technician
		scheduled []model.Job
		backlog   []model.Job
		events    []model.CalendarEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		techs, err = l.src.ListTechnicians(gctx)
		return err
	})
	g.Go(func() (err error) {
		scheduled, err = l.src.ListScheduledJobs(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		backlog, err = l.src.ListUnscheduledJobs(gctx)
		return err
	})
	g.Go(func() (err error) {
		events, err = l.src.ListCalendarEvents(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	resources := make([]board.Resource, 0, len(techs))
	for _, t := range techs {
		resources = append(resources, board.Resource{ID: t.ID, DisplayName: t.DisplayName, ColorTag: t.ColorTag})
	}

	items := make([]board.Item, 0, len(scheduled)+len(backlog)+len(events))
	var customerIDs []string
	for _, j := range append(scheduled, backlog...) {
		items = append(items, l.jobItem(j, from))
		if j.CustomerID != "" {
			customerIDs = append(customerIDs, j.CustomerID)
		}
	}
	for _, e := range events {
		it, ok := l.eventItem(e)
		if !ok {
			continue
		}
		items = append(items, it)
	}

	if l.customers != nil {
		if err := l.customers.Prime(ctx, customerIDs); err != nil {
			l.logger.Warnw("failed to load customer names", "error", err)
		}
	}

	l.target.LoadSince(mark, items, resources)

	l.mu.Lock()
	l.current = &v
	l.generation++
	l.mu.Unlock()

	l.logger.Infow("board window loaded",
		"from", from, "to", to,
		"technicians", len(resources), "items", len(items))
	return nil
}

// jobItem converts a directory job into a board item. Placement fields are
// normalized so the item satisfies the store invariants: a job without a
// technician is unscheduled and a job with one is never unscheduled.
func (l *Loader) jobItem(j model.Job, windowStart time.Time) board.Item {
	it := board.Item{
		ID:          j.ID,
		SourceKind:  board.SourceJob,
		Start:       j.ScheduleStart,
		End:         j.ScheduleEnd,
		Status:      board.Status(j.Status),
		Title:       j.Title,
		CustomerRef: j.CustomerID,
		Metadata:    l.metadata(j),
	}

	if !j.Unscheduled && j.TechnicianID != nil && *j.TechnicianID != "" {
		it.ResourceID = *j.TechnicianID
		if !it.Status.Valid() || it.Status == board.StatusUnscheduled {
			l.logger.Warnw("assigned job has no working status; treating as scheduled", "job", j.ID, "status", j.Status)
			it.Status = board.StatusScheduled
		}
	} else {
		it.Status = board.StatusUnscheduled
	}

	if it.Start.IsZero() {
		it.Start = windowStart
	}
	if !it.Start.Before(it.End) {
		it.End = it.Start.Add(l.defaultDuration)
	}
	return it
}

func (l *Loader) metadata(j model.Job) map[string]any {
	var md map[string]any
	if j.Details != "" {
		if err := json.Unmarshal([]byte(j.Details), &md); err != nil {
			l.logger.Warnw("ignoring malformed job details", "job", j.ID, "error", err)
			md = nil
		}
	}
	if j.Description != "" {
		if md == nil {
			md = make(map[string]any, 1)
		}
		md["description"] = j.Description
	}
	return md
}

func (l *Loader) eventItem(e model.CalendarEvent) (board.Item, bool) {
	if !e.Start.Before(e.End) {
		l.logger.Warnw("skipping calendar event with empty time range", "event", e.ID)
		return board.Item{}, false
	}
	it := board.Item{
		ID:         e.ID,
		SourceKind: board.SourceEvent,
		Start:      e.Start,
		End:        e.End,
		Title:      e.Title,
	}
	if e.TechnicianID != nil {
		it.ResourceID = *e.TechnicianID
	}
	if e.CreatedBy != "" {
		it.Metadata = map[string]any{"createdBy": e.CreatedBy}
	}
	return it, true
}
