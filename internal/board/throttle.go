package board

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHoverFrame is the frame interval used when none is configured.
const DefaultHoverFrame = 16 * time.Millisecond

type pendingHover struct {
	sessionID string
	pointer   Pointer
}

// HoverThrottle coalesces pointer-move events. Any number of events may be
// offered between frames; only the last one is resolved when the frame ends.
type HoverThrottle struct {
	logger   *zap.SugaredLogger
	mgr      *DragManager
	interval time.Duration

	mu      sync.Mutex
	pending *pendingHover
	last    Candidate
}

// NewHoverThrottle returns a throttle feeding mgr once per interval.
func NewHoverThrottle(logger *zap.SugaredLogger, mgr *DragManager, interval time.Duration) *HoverThrottle {
	if interval <= 0 {
		interval = DefaultHoverFrame
	}
	return &HoverThrottle{logger: logger, mgr: mgr, interval: interval}
}

// Offer records p as the latest pointer position of the session, replacing
// any event not yet applied.
func (t *HoverThrottle) Offer(sessionID string, p Pointer) {
	t.mu.Lock()
	t.pending = &pendingHover{sessionID: sessionID, pointer: p}
	t.mu.Unlock()
}

// Flush applies the pending event, if any. It reports whether an event was
// applied.
func (t *HoverThrottle) Flush() (Candidate, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return t.last, false, nil
	}
	ev := *t.pending
	t.pending = nil

	c, err := t.mgr.Hover(ev.sessionID, ev.pointer)
	if err != nil {
		return Candidate{}, true, err
	}
	t.last = c
	return c, true, nil
}

// Discard drops the pending event. Drop and Cancel call it so a stale move
// cannot land after the gesture ended.
func (t *HoverThrottle) Discard() {
	t.mu.Lock()
	t.pending = nil
	t.last = Candidate{}
	t.mu.Unlock()
}

// Run flushes once per frame until ctx is done.
func (t *HoverThrottle) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, applied, err := t.Flush(); applied && err != nil {
				t.logger.Debugw("dropping hover for inactive session", "error", err)
			}
		}
	}
}
