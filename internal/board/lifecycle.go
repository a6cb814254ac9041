package board

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// transitions lists the status changes the Lifecycle accepts. Moves between
// unscheduled and scheduled belong to the commit pipeline and are absent.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusStarted: true, StatusOnHold: true, StatusAwaitingParts: true,
	},
	StatusStarted: {
		StatusInProgress: true, StatusOnHold: true, StatusAwaitingParts: true,
	},
	StatusInProgress: {
		StatusComplete: true, StatusOnHold: true, StatusAwaitingParts: true,
	},
	StatusOnHold: {
		StatusScheduled: true, StatusStarted: true, StatusInProgress: true, StatusAwaitingParts: true,
	},
	StatusAwaitingParts: {
		StatusScheduled: true, StatusStarted: true, StatusInProgress: true, StatusOnHold: true,
	},
	StatusComplete: {
		StatusInvoiced: true,
	},
}

// CanTransition reports whether a job may move from one status to another
// outside of a placement change.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Lifecycle applies job status transitions that are not driven by placement.
type Lifecycle struct {
	logger    *zap.SugaredLogger
	store     *Store
	locks     *ItemLocks
	persister Persister
	notifier  Notifier
}

// NewLifecycle wires a lifecycle controller. A nil notifier drops notices.
func NewLifecycle(logger *zap.SugaredLogger, store *Store, locks *ItemLocks, persister Persister, notifier Notifier) *Lifecycle {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Lifecycle{
		logger:    logger,
		store:     store,
		locks:     locks,
		persister: persister,
		notifier:  notifier,
	}
}

// Transition moves item id to the requested status. It waits for any commit
// or transition already running on the same item. If the write fails, only
// the status is reverted.
func (l *Lifecycle) Transition(ctx context.Context, id string, requested Status) (Item, error) {
	if !requested.Valid() {
		return Item{}, validationf("unknown status %q", requested)
	}
	it, err := l.checkTransition(id, requested)
	if err != nil {
		return Item{}, err
	}

	release, err := l.locks.Acquire(ctx, id)
	if err != nil {
		return Item{}, errors.Wrapf(err, "lock item %q", id)
	}
	defer release()

	// Re-read under the lock: a commit may have finished while we waited.
	if it, err = l.checkTransition(id, requested); err != nil {
		return Item{}, err
	}
	prev := it.Status

	l.store.Hold(id)
	defer l.store.Release(id)

	if err := l.store.PatchItem(id, Patch{Status: &requested}); err != nil {
		if IsNotFound(err) {
			l.logger.Errorw("transition aborted: item missing from store, window reload required", "item", id, "error", err)
		}
		return Item{}, err
	}

	it.Status = requested
	if err := l.persister.SavePlacement(ctx, placementOf(it)); err != nil {
		if rbErr := l.store.PatchItem(id, Patch{Status: &prev}); rbErr != nil {
			l.logger.Errorw("status rollback failed", "item", id, "error", rbErr)
		}
		perr := persistence(err, id)
		l.logger.Warnw("status not saved, reverted", "item", id, "from", prev, "to", requested, "error", err)
		l.notifier.NotifyFailure(Failure{
			ItemID:    id,
			Operation: OpStatus,
			Message:   perr.Error(),
			At:        time.Now().UTC(),
		})
		return Item{}, perr
	}

	l.logger.Infow("status changed", "item", id, "from", prev, "to", requested)
	out, _ := l.store.Item(id)
	return out, nil
}

func (l *Lifecycle) checkTransition(id string, requested Status) (Item, error) {
	it, ok := l.store.Item(id)
	if !ok {
		return Item{}, notFound(id)
	}
	if it.SourceKind != SourceJob {
		return Item{}, validationf("item %q is a %s and has no status", id, it.SourceKind)
	}
	if !CanTransition(it.Status, requested) {
		return Item{}, validationf("item %q cannot move from %s to %s", id, it.Status, requested)
	}
	return it, nil
}
