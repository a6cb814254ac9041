package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fieldboard/internal/board"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_SavePlacement(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		placement        board.Placement
		mockExpectations func(mock sqlmock.Sqlmock)
		expectNotFound   bool
		expectedErr      bool
	}{
		{
			name: "Assigned job is written",
			placement: board.Placement{
				ID: "J1", ResourceID: "A", Start: start, End: start.Add(time.Hour), Status: board.StatusScheduled,
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Missing job reports not found",
			placement: board.Placement{
				ID: "J9", ResourceID: "A", Start: start, End: start.Add(time.Hour), Status: board.StatusScheduled,
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectNotFound: true,
			expectedErr:    true,
		},
		{
			name: "Driver failure is returned",
			placement: board.Placement{
				ID: "J1", Start: start, End: start.Add(time.Hour), Status: board.StatusUnscheduled,
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs" SET`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := store.SavePlacement(context.Background(), tc.placement)

			if tc.expectedErr {
				assert.Error(t, err)
				assert.Equal(t, tc.expectNotFound, errors.Is(err, ErrJobNotFound))
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_ListTechnicians(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "technicians" WHERE active = $1 ORDER BY display_name`)).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "color_tag", "active"}).
			AddRow("A", "Alex", "#e57373", true).
			AddRow("B", "Blair", "#64b5f6", true))

	techs, err := store.ListTechnicians(context.Background())
	require.NoError(t, err)
	require.Len(t, techs, 2)
	assert.Equal(t, "Alex", techs[0].DisplayName)
	assert.Equal(t, "#64b5f6", techs[1].ColorTag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListScheduledJobs(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs" WHERE unscheduled = $1 AND schedule_start < $2 AND schedule_end > $3`)).
		WithArgs(false, Any{}, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "technician_id", "title", "schedule_start", "schedule_end", "unscheduled", "status"}).
			AddRow("J1", "A", "Boiler service", from.Add(9*time.Hour), from.Add(10*time.Hour), false, "scheduled"))

	jobs, err := store.ListScheduledJobs(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].TechnicianID)
	assert.Equal(t, "A", *jobs[0].TechnicianID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ReplaceCalendarEvents(t *testing.T) {
	now := time.Now()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tech := "B"

	testCases := []struct {
		name             string
		events           []FeedEvent
		mockExpectations func(mock sqlmock.Sqlmock)
		expected         EventSyncResult
	}{
		{
			name: "Upserts feed events and removes stale ones",
			events: []FeedEvent{
				{ID: "E1", Title: "Team meeting", StartParsed: start, EndParsed: start.Add(time.Hour), TechnicianID: &tech},
				{ID: "E2", Title: "Training", StartParsed: start.Add(2 * time.Hour), EndParsed: start.Add(3 * time.Hour)},
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "calendar_events"`)).
					WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "calendar_events" WHERE id NOT IN ($1,$2)`)).
					WithArgs("E1", "E2").
					WillReturnResult(sqlmock.NewResult(0, 3))
				mock.ExpectCommit()
			},
			expected: EventSyncResult{Upserted: 2, Removed: 3},
		},
		{
			name:   "Empty feed clears every event",
			events: nil,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "calendar_events" WHERE 1 = 1`)).
					WillReturnResult(sqlmock.NewResult(0, 4))
				mock.ExpectCommit()
			},
			expected: EventSyncResult{Removed: 4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			res, err := store.ReplaceCalendarEvents(context.Background(), now, tc.events)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, res)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCustomerCache(t *testing.T) {
	gormDB, mock := newTestDB(t)
	cache := NewCustomerCache(NewGormStore(gormDB), time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","name" FROM "customers" WHERE id IN ($1,$2)`)).
		WithArgs("cust-1", "cust-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("cust-1", "Harbor Bakery"))

	require.NoError(t, cache.Prime(context.Background(), []string{"cust-1", "", "cust-2", "cust-1"}))

	name, ok := cache.CustomerName("cust-1")
	assert.True(t, ok)
	assert.Equal(t, "Harbor Bakery", name)

	_, ok = cache.CustomerName("cust-2")
	assert.False(t, ok, "unknown customers are not cached")

	// cust-1 is cached, so only cust-2 is queried again.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","name" FROM "customers" WHERE id IN ($1)`)).
		WithArgs("cust-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	require.NoError(t, cache.Prime(context.Background(), []string{"cust-1", "cust-2"}))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
