package board

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Persister is the job persistence collaborator. It is the only blocking
// dependency of the board.
type Persister interface {
	SavePlacement(ctx context.Context, p Placement) error
}

// Failure is a user-visible notice that a change could not be saved and was
// reverted.
type Failure struct {
	ItemID    string    `json:"itemId"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Operation names carried by Failure.
const (
	OpPlacement = "placement"
	OpStatus    = "status"
)

// Notifier delivers failure notices to the UI shell.
type Notifier interface {
	NotifyFailure(f Failure)
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(f Failure)

// NotifyFailure calls fn(f).
func (fn NotifierFunc) NotifyFailure(f Failure) { fn(f) }

type nopNotifier struct{}

func (nopNotifier) NotifyFailure(Failure) {}

// DeriveStatus is the status an item takes when it is dropped on the board:
// unscheduled jobs become scheduled, everything else keeps its status.
func DeriveStatus(s Status) Status {
	if s == StatusUnscheduled {
		return StatusScheduled
	}
	return s
}

// CommitPipeline turns a finished drag into a persisted placement. The Store
// is updated before the write and reverted to the item's pre-commit value if
// it fails.
type CommitPipeline struct {
	logger    *zap.SugaredLogger
	store     *Store
	locks     *ItemLocks
	persister Persister
	notifier  Notifier
}

// NewCommitPipeline wires a pipeline. A nil notifier drops notices.
func NewCommitPipeline(logger *zap.SugaredLogger, store *Store, locks *ItemLocks, persister Persister, notifier Notifier) *CommitPipeline {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CommitPipeline{
		logger:    logger,
		store:     store,
		locks:     locks,
		persister: persister,
		notifier:  notifier,
	}
}

// Commit applies the session's candidate. On success the returned item is
// the stored result; on a failed write the item is back where it was when the
// commit took its lock and the error is a PersistenceError. The status is
// derived from the item's status at that point, so a transition applied
// during the drag is kept.
func (p *CommitPipeline) Commit(ctx context.Context, s DragSession) (Item, error) {
	if !s.Candidate.Valid {
		if s.Candidate.Reason != nil {
			return Item{}, s.Candidate.Reason
		}
		return Item{}, ErrOutOfBounds
	}

	release, err := p.locks.Acquire(ctx, s.ItemID)
	if err != nil {
		return Item{}, errors.Wrapf(err, "lock item %q", s.ItemID)
	}
	defer release()

	cur, ok := p.store.Item(s.ItemID)
	if !ok {
		err := notFound(s.ItemID)
		p.logger.Errorw("commit aborted: item missing from store, window reload required", "item", s.ItemID, "error", err)
		return Item{}, err
	}
	prev := originOf(cur)

	p.store.Hold(s.ItemID)
	defer p.store.Release(s.ItemID)

	c := s.Candidate
	status := DeriveStatus(cur.Status)
	if err := p.store.PatchItem(s.ItemID, Patch{
		ResourceID: &c.ResourceID,
		Start:      &c.Start,
		End:        &c.End,
		Status:     &status,
	}); err != nil {
		if IsNotFound(err) {
			p.logger.Errorw("commit aborted: item missing from store, window reload required", "item", s.ItemID, "error", err)
		}
		return Item{}, err
	}

	placement := Placement{ID: s.ItemID, ResourceID: c.ResourceID, Start: c.Start, End: c.End, Status: status}
	if err := p.persister.SavePlacement(ctx, placement); err != nil {
		if rbErr := p.store.PatchItem(s.ItemID, prev.patch()); rbErr != nil {
			p.logger.Errorw("rollback failed", "item", s.ItemID, "error", rbErr)
		}
		perr := persistence(err, s.ItemID)
		p.logger.Warnw("placement not saved, reverted", "item", s.ItemID, "error", err)
		p.notifier.NotifyFailure(Failure{
			ItemID:    s.ItemID,
			Operation: OpPlacement,
			Message:   perr.Error(),
			At:        time.Now().UTC(),
		})
		return Item{}, perr
	}

	p.logger.Infow("placement committed", "item", s.ItemID, "resource", c.ResourceID, "start", c.Start, "status", status)
	it, _ := p.store.Item(s.ItemID)
	return it, nil
}
