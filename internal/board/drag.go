package board

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DragState is the state of a drag session.
type DragState string

const (
	DragIdle       DragState = "idle"
	DragDragging   DragState = "dragging"
	DragCommitting DragState = "committing"
	DragCancelled  DragState = "cancelled"
)

// DragSession is one drag gesture from pick-up to drop or cancel.
type DragSession struct {
	ID        string     `json:"id"`
	ItemID    string     `json:"itemId"`
	Origin    Origin     `json:"origin"`
	Candidate Candidate  `json:"candidate"`
	State     DragState  `json:"state"`
	Layout    GridLayout `json:"-"`

	item Item
}

// DropResult reports how a drop ended.
type DropResult struct {
	State     DragState `json:"state"`
	Committed bool      `json:"committed"`
	Item      Item      `json:"item"`
	// Reason is set when the drop was over an invalid target.
	Reason error `json:"-"`
}

// OverlapPolicy may veto a valid candidate, for example to refuse
// double-booking a technician. A nil policy allows overlaps.
type OverlapPolicy func(snap Snapshot, itemID string, c Candidate) error

// NoDoubleBooking refuses candidates that overlap another item in the same
// technician column. Calendar events count as bookings.
func NoDoubleBooking(snap Snapshot, itemID string, c Candidate) error {
	for _, it := range snap.Items {
		if it.IsGhost || it.ID == itemID || it.ResourceID != c.ResourceID {
			continue
		}
		if it.Start.Before(c.End) && c.Start.Before(it.End) {
			return errors.Newf("overlaps %s %q", it.SourceKind, it.ID)
		}
	}
	return nil
}

// DragManager owns the single live drag session and its ghost preview.
type DragManager struct {
	logger   *zap.SugaredLogger
	store    *Store
	resolver Resolver
	locks    *ItemLocks
	pipeline *CommitPipeline
	overlap  OverlapPolicy

	mu      sync.Mutex
	session *DragSession
}

// NewDragManager wires a manager.
func NewDragManager(logger *zap.SugaredLogger, store *Store, resolver Resolver, locks *ItemLocks, pipeline *CommitPipeline, overlap OverlapPolicy) *DragManager {
	return &DragManager{
		logger:   logger,
		store:    store,
		resolver: resolver,
		locks:    locks,
		pipeline: pipeline,
		overlap:  overlap,
	}
}

// Begin starts a drag of itemID over layout. The ghost is shown at the item's
// current placement until the first valid hover.
func (m *DragManager) Begin(itemID string, layout GridLayout) (DragSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if m.session.ItemID == itemID {
			return DragSession{}, conflictf("item %q busy: drag session %s is %s", itemID, m.session.ID, m.session.State)
		}
		return DragSession{}, conflictf("drag session %s is still %s", m.session.ID, m.session.State)
	}
	it, ok := m.store.Item(itemID)
	if !ok {
		return DragSession{}, notFound(itemID)
	}
	if it.SourceKind != SourceJob {
		return DragSession{}, validationf("item %q is a %s and cannot be moved on the board", itemID, it.SourceKind)
	}
	if m.locks.Busy(itemID) {
		return DragSession{}, conflictf("item %q busy", itemID)
	}

	s := &DragSession{
		ID:     uuid.NewString(),
		ItemID: itemID,
		Origin: originOf(it),
		State:  DragDragging,
		Layout: layout,
		item:   it,
	}
	m.session = s
	m.store.UpsertGhost(it)
	m.logger.Debugw("drag started", "session", s.ID, "item", itemID)
	return *s, nil
}

// Hover resolves p into the session's current candidate. A valid candidate
// moves the ghost; an invalid one leaves the ghost at the last valid position.
func (m *DragManager) Hover(sessionID string, p Pointer) (Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.dragging(sessionID)
	if err != nil {
		return Candidate{}, err
	}
	return m.hoverLocked(s, p), nil
}

func (m *DragManager) hoverLocked(s *DragSession, p Pointer) Candidate {
	c := m.resolver.Resolve(&s.Layout, p, s.Origin.End.Sub(s.Origin.Start))
	if c.Valid && m.overlap != nil {
		if err := m.overlap(m.store.Snapshot(), s.ItemID, c); err != nil {
			c.Valid = false
			c.Reason = errors.Mark(err, ErrValidation)
		}
	}
	s.Candidate = c
	if c.Valid {
		ghost := s.item
		ghost.ResourceID = c.ResourceID
		ghost.Start = c.Start
		ghost.End = c.End
		ghost.Status = DeriveStatus(s.Origin.Status)
		m.store.UpsertGhost(ghost)
	}
	return c
}

// Drop ends the gesture. When p is non-nil it is applied as a final hover.
// A drop over an invalid target cancels the session and leaves the Store as
// it was before the drag. Otherwise the candidate is committed; the commit
// cannot be cancelled and the ghost is cleared whatever its outcome.
func (m *DragManager) Drop(ctx context.Context, sessionID string, p *Pointer) (DropResult, error) {
	s, committing, res, err := m.startDrop(sessionID, p)
	if err != nil || s == nil {
		return res, err
	}
	defer m.finishDrop(s)

	start := time.Now()
	it, commitErr := m.pipeline.Commit(context.WithoutCancel(ctx), committing)

	m.logger.Debugw("drag finished", "session", s.ID, "item", s.ItemID, "took", time.Since(start), "error", commitErr)
	if commitErr != nil {
		return DropResult{State: DragIdle}, commitErr
	}
	return DropResult{State: DragIdle, Committed: true, Item: it}, nil
}

// startDrop applies the final pointer and moves the session to Committing.
// A nil session means the drop ended without a commit and res is final.
func (m *DragManager) startDrop(sessionID string, p *Pointer) (*DragSession, DragSession, DropResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.dragging(sessionID)
	if err != nil {
		return nil, DragSession{}, DropResult{}, err
	}
	if p != nil {
		m.hoverLocked(s, *p)
	}
	if !s.Candidate.Valid {
		reason := s.Candidate.Reason
		if reason == nil {
			reason = ErrOutsideGrid
		}
		m.endLocked(s, DragCancelled)
		return nil, DragSession{}, DropResult{State: DragCancelled, Reason: reason}, nil
	}
	s.State = DragCommitting
	return s, *s, DropResult{}, nil
}

func (m *DragManager) finishDrop(s *DragSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked(s, DragIdle)
}

// Cancel abandons a dragging session. Sessions already committing cannot be
// cancelled.
func (m *DragManager) Cancel(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.dragging(sessionID)
	if err != nil {
		return err
	}
	m.endLocked(s, DragCancelled)
	m.logger.Debugw("drag cancelled", "session", s.ID, "item", s.ItemID)
	return nil
}

// Current returns a copy of the live session.
func (m *DragManager) Current() (DragSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return DragSession{}, false
	}
	return *m.session, true
}

func (m *DragManager) dragging(sessionID string) (*DragSession, error) {
	s := m.session
	if s == nil || s.ID != sessionID {
		return nil, conflictf("drag session %s is not active", sessionID)
	}
	if s.State != DragDragging {
		return nil, conflictf("drag session %s is %s", sessionID, s.State)
	}
	return s, nil
}

func (m *DragManager) endLocked(s *DragSession, state DragState) {
	s.State = state
	m.store.ClearGhost()
	if m.session == s {
		m.session = nil
	}
}
