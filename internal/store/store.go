package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fieldboard/internal/board"
	"fieldboard/internal/model"
)

// ErrJobNotFound is returned by SavePlacement when the job row is gone.
var ErrJobNotFound = errors.New("job not found")

// Store defines the interface for all database operations.
type Store interface {
	// Job directory (read).
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	ListScheduledJobs(ctx context.Context, from, to time.Time) ([]model.Job, error)
	ListUnscheduledJobs(ctx context.Context) ([]model.Job, error)
	ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
	CustomerNames(ctx context.Context, ids []string) (map[string]string, error)

	// Job persistence (write).
	SavePlacement(ctx context.Context, p board.Placement) error

	// Calendar sync.
	ReplaceCalendarEvents(ctx context.Context, now time.Time, events []FeedEvent) (EventSyncResult, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListTechnicians returns the active technicians ordered by display name.
func (s *gormStore) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	var techs []model.Technician
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("display_name").
		Find(&techs).Error; err != nil {
		return nil, errors.Wrap(err, "list technicians")
	}
	return techs, nil
}

// ListScheduledJobs returns scheduled jobs overlapping [from, to).
func (s *gormStore) ListScheduledJobs(ctx context.Context, from, to time.Time) ([]model.Job, error) {
	var jobs []model.Job
	if err := s.db.WithContext(ctx).
		Where("unscheduled = ? AND schedule_start < ? AND schedule_end > ?", false, to, from).
		Order("schedule_start").
		Find(&jobs).Error; err != nil {
		return nil, errors.Wrap(err, "list scheduled jobs")
	}
	return jobs, nil
}

// ListUnscheduledJobs returns the backlog of jobs without a technician slot.
// Closed jobs are left out.
func (s *gormStore) ListUnscheduledJobs(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	if err := s.db.WithContext(ctx).
		Where("unscheduled = ? AND status NOT IN ?", true, []string{string(board.StatusComplete), string(board.StatusInvoiced)}).
		Order("created_at").
		Find(&jobs).Error; err != nil {
		return nil, errors.Wrap(err, "list unscheduled jobs")
	}
	return jobs, nil
}

// ListCalendarEvents returns synced calendar events overlapping [from, to).
func (s *gormStore) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	if err := s.db.WithContext(ctx).
		Where("start < ? AND \"end\" > ?", to, from).
		Order("start").
		Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "list calendar events")
	}
	return events, nil
}

// CustomerNames maps customer ids to names. Unknown ids are absent.
func (s *gormStore) CustomerNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var customers []model.Customer
	if err := s.db.WithContext(ctx).
		Select("id", "name").
		Where("id IN ?", ids).
		Find(&customers).Error; err != nil {
		return nil, errors.Wrap(err, "load customer names")
	}
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}

// SavePlacement writes a job's technician, schedule and status.
func (s *gormStore) SavePlacement(ctx context.Context, p board.Placement) error {
	var tech *string
	if p.ResourceID != "" {
		tech = &p.ResourceID
	}
	res := s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"technician_id":  tech,
			"schedule_start": p.Start,
			"schedule_end":   p.End,
			"unscheduled":    p.ResourceID == "",
			"status":         string(p.Status),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "save placement of job %s", p.ID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrJobNotFound, "save placement of job %s", p.ID)
	}
	return nil
}

// ReplaceCalendarEvents makes the stored events match the feed: listed events
// are upserted, events the feed no longer carries are removed.
func (s *gormStore) ReplaceCalendarEvents(ctx context.Context, now time.Time, events []FeedEvent) (EventSyncResult, error) {
	var result EventSyncResult

	rows := make([]model.CalendarEvent, 0, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, model.CalendarEvent{
			ID:           e.ID,
			Title:        e.Title,
			Start:        e.StartParsed,
			End:          e.EndParsed,
			CreatedBy:    e.CreatedBy,
			TechnicianID: e.TechnicianID,
			SyncedAt:     now,
		})
		ids = append(ids, e.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "start", "end", "created_by", "technician_id", "synced_at"}),
			}).Create(&rows).Error; err != nil {
				return errors.Wrap(err, "batch upsert calendar events")
			}
		}

		del := tx.Where("1 = 1")
		if len(ids) > 0 {
			del = tx.Where("id NOT IN ?", ids)
		}
		res := del.Delete(&model.CalendarEvent{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete stale calendar events")
		}
		result.Removed = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return EventSyncResult{}, err
	}
	result.Upserted = len(rows)
	return result, nil
}
