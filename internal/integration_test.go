package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fieldboard/config"
	"fieldboard/internal/board"
	"fieldboard/internal/calsync"
	"fieldboard/internal/db"
	"fieldboard/internal/directory"
	"fieldboard/internal/model"
	"fieldboard/internal/store"
)

var day = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func strPtr(s string) *string { return &s }

// TestBoardLifecycle runs a calendar sync, loads the board, drags a backlog
// job next to a synced event and walks it through its status chain, checking
// the database after each step.
func TestBoardLifecycle(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	// 1. In-memory SQLite database, migrated by db.Init.
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:board_lifecycle?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, log)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	require.NoError(t, gormDB.Create(&[]model.Technician{
		{ID: "tech-1", DisplayName: "Alex Moreno", ColorTag: "red", Active: true},
		{ID: "tech-2", DisplayName: "Blair Chen", ColorTag: "blue", Active: true},
	}).Error)
	require.NoError(t, gormDB.Create(&model.Job{
		ID: "J-100", Title: "Replace water heater", Unscheduled: true, Status: "unscheduled",
		ScheduleStart: at(0, 0), ScheduleEnd: at(1, 30),
	}).Error)

	// 2. Calendar feed serving one event per response set.
	var mu sync.Mutex
	feed := []store.FeedEvent{
		{ID: "cal-1", Title: "[Blair] Safety training", Start: "2025-03-10 10:00:00", End: "2025-03-10 12:00:00"},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		items := feed
		mu.Unlock()

		var resp calsync.ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 10
		resp.Data.Total = len(items)
		resp.Data.Items = items
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	appStore := store.NewGormStore(gormDB)
	engine := board.NewEngine(board.Options{
		Grid:     board.SnapGrid{StartHour: 7, EndHour: 19, SlotMinutes: 15},
		Location: time.UTC,
		Overlap:  board.NoDoubleBooking,
	}, appStore, nil, log)
	loader := directory.NewLoader(log, appStore, engine.Store, store.NewCustomerCache(appStore, time.Minute), time.Hour)
	view := engine.ViewParams(day, board.ViewDay)

	syncSvc := calsync.NewService(config.CalendarSyncConfig{
		Enabled:  true,
		URL:      server.URL,
		PageSize: 10,
		Timezone: "UTC",
	}, appStore, log, func(ctx context.Context) {
		assert.NoError(t, loader.Reload(ctx))
	})

	ctx := context.Background()
	require.NoError(t, loader.Load(ctx, view))

	t.Run("Sync matches the event to a technician", func(t *testing.T) {
		res, err := syncSvc.SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserted)

		var ev model.CalendarEvent
		require.NoError(t, gormDB.First(&ev, "id = ?", "cal-1").Error)
		require.NotNil(t, ev.TechnicianID)
		assert.Equal(t, "tech-2", *ev.TechnicianID)
		assert.Equal(t, "Safety training", ev.Title)

		v := engine.Project(view, nil)
		require.Len(t, v.Lanes, 2)
		require.Len(t, v.Lanes[1].Blocks, 1, "the reload after sync shows the event")
		assert.Equal(t, "cal-1", v.Lanes[1].Blocks[0].ItemID)
		assert.Equal(t, 180, v.Lanes[1].Blocks[0].TopOffset)
		require.Len(t, v.Backlog, 1)
	})

	layout := board.GridLayout{
		ColumnWidth:     100,
		PixelsPerMinute: 1,
		Columns: []board.Column{
			{ResourceID: "tech-1", Day: day, Assignable: true},
			{ResourceID: "tech-2", Day: day, Assignable: true},
		},
	}

	t.Run("Drag onto the event is refused, next slot commits", func(t *testing.T) {
		s, err := engine.Drag.Begin("J-100", layout)
		require.NoError(t, err)

		c, err := engine.Drag.Hover(s.ID, board.Pointer{X: 150, Y: 200}) // tech-2 10:20
		require.NoError(t, err)
		assert.False(t, c.Valid, "overlaps the training")

		res, err := engine.Drag.Drop(ctx, s.ID, &board.Pointer{X: 150, Y: 307}) // tech-2 12:07
		require.NoError(t, err)
		require.True(t, res.Committed)

		var job model.Job
		require.NoError(t, gormDB.First(&job, "id = ?", "J-100").Error)
		require.NotNil(t, job.TechnicianID)
		assert.Equal(t, "tech-2", *job.TechnicianID)
		assert.False(t, job.Unscheduled)
		assert.Equal(t, "scheduled", job.Status)
		assert.True(t, job.ScheduleStart.Equal(at(12, 0)))
		assert.True(t, job.ScheduleEnd.Equal(at(13, 30)))

		_, ghost := engine.Store.Snapshot().Ghost()
		assert.False(t, ghost)
	})

	t.Run("Status chain is persisted", func(t *testing.T) {
		for _, st := range []board.Status{board.StatusStarted, board.StatusInProgress, board.StatusComplete, board.StatusInvoiced} {
			_, err := engine.Lifecycle.Transition(ctx, "J-100", st)
			require.NoError(t, err, "to %s", st)
		}
		var job model.Job
		require.NoError(t, gormDB.First(&job, "id = ?", "J-100").Error)
		assert.Equal(t, "invoiced", job.Status)

		_, err := engine.Lifecycle.Transition(ctx, "J-100", board.StatusScheduled)
		assert.True(t, board.IsValidation(err))
	})

	t.Run("Events dropped from the feed are removed", func(t *testing.T) {
		mu.Lock()
		feed = nil
		mu.Unlock()

		res, err := syncSvc.SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Removed)

		var count int64
		gormDB.Model(&model.CalendarEvent{}).Count(&count)
		assert.Zero(t, count)

		_, ok := engine.Store.Item("cal-1")
		assert.False(t, ok)
	})
}
