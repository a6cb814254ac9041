package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fieldboard/config"
	"fieldboard/internal/board"
	"fieldboard/internal/db"
	"fieldboard/internal/directory"
	"fieldboard/internal/model"
	"fieldboard/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var dbSeq atomic.Int64

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func strPtr(s string) *string { return &s }

type testServer struct {
	router *gin.Engine
	engine *board.Engine
	db     *gorm.DB
	store  store.Store
}

type persisterFunc func(ctx context.Context, p board.Placement) error

func (f persisterFunc) SavePlacement(ctx context.Context, p board.Placement) error { return f(ctx, p) }

// newTestServer builds the API over a fresh in-memory sqlite database seeded
// with two technicians, two jobs and one calendar event. A nil persister
// writes through the gorm store.
func newTestServer(t *testing.T, persister board.Persister, vapid *webpush.Options) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	require.NoError(t, gdb.Create(&[]model.Technician{
		{ID: "A", DisplayName: "Alex", ColorTag: "red", Active: true},
		{ID: "B", DisplayName: "Blair", ColorTag: "blue", Active: true},
	}).Error)
	require.NoError(t, gdb.Create(&model.Customer{ID: "cust-1", Name: "Harbor Bakery"}).Error)
	require.NoError(t, gdb.Create(&[]model.Job{
		{ID: "J1", CustomerID: "cust-1", TechnicianID: strPtr("A"), Title: "Furnace tune-up", ScheduleStart: at(9, 0), ScheduleEnd: at(10, 0), Status: "scheduled"},
		{ID: "J2", Title: "Water heater", ScheduleStart: at(9, 0), ScheduleEnd: at(11, 0), Unscheduled: true, Status: "unscheduled"},
	}).Error)
	require.NoError(t, gdb.Create(&model.CalendarEvent{
		ID: "E1", Title: "Team lunch", Start: at(12, 0), End: at(13, 0), TechnicianID: strPtr("B"), SyncedAt: time.Now(),
	}).Error)

	st := store.NewGormStore(gdb)
	if persister == nil {
		persister = st
	}
	engine := board.NewEngine(board.Options{
		Grid:     board.SnapGrid{StartHour: 7, EndHour: 19, SlotMinutes: 15},
		Location: time.UTC,
	}, persister, nil, log)
	customers := store.NewCustomerCache(st, time.Minute)
	loader := directory.NewLoader(log, st, engine.Store, customers, time.Hour)

	h := NewHandler(st, engine, loader, customers, vapid, log)
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60})
	return &testServer{router: router, engine: engine, db: gdb, store: st}
}

func (s *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// loadDay fetches the 2025-03-10 day view so the board store holds the seed.
func (s *testServer) loadDay(t *testing.T) board.View {
	t.Helper()
	w := s.do(http.MethodGet, "/api/board?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var v board.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// testLayout has one 100px column per technician and one pixel per minute.
func testLayout() board.GridLayout {
	return board.GridLayout{
		ColumnWidth:     100,
		PixelsPerMinute: 1,
		Columns: []board.Column{
			{ResourceID: "A", Day: testDay, Assignable: true},
			{ResourceID: "B", Day: testDay, Assignable: true},
		},
	}
}

func pointerAt(col, hour, minute int) board.Pointer {
	return board.Pointer{X: float64(col*100 + 50), Y: float64((hour-7)*60 + minute)}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}
