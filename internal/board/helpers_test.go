package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) // a Monday

var testGrid = SnapGrid{StartHour: 7, EndHour: 19, SlotMinutes: 15}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

// testLayout has one 100px column per technician and one pixel per minute.
func testLayout() GridLayout {
	return GridLayout{
		ColumnWidth:     100,
		PixelsPerMinute: 1,
		Columns: []Column{
			{ResourceID: "A", Day: testDay, Assignable: true},
			{ResourceID: "B", Day: testDay, Assignable: true},
			{ResourceID: "C", Day: testDay, Assignable: true},
			{ResourceID: "X", Day: testDay, Assignable: false},
		},
	}
}

// pointerAt returns the pointer over column col at the given wall time.
func pointerAt(col, hour, minute int) Pointer {
	return Pointer{
		X: float64(col*100 + 50),
		Y: float64((hour-testGrid.StartHour)*60 + minute),
	}
}

func testResources() []Resource {
	return []Resource{
		{ID: "A", DisplayName: "Alex", ColorTag: "red"},
		{ID: "B", DisplayName: "Blair", ColorTag: "blue"},
		{ID: "C", DisplayName: "Casey", ColorTag: "green"},
	}
}

func testItems() []Item {
	return []Item{
		{ID: "J1", SourceKind: SourceJob, ResourceID: "A", Start: at(9, 0), End: at(10, 0), Status: StatusScheduled, Title: "Furnace tune-up", CustomerRef: "cust-1"},
		{ID: "J2", SourceKind: SourceJob, Start: at(9, 0), End: at(11, 0), Status: StatusUnscheduled, Title: "Water heater"},
		{ID: "E1", SourceKind: SourceEvent, ResourceID: "B", Start: at(12, 0), End: at(13, 0), Title: "Team lunch"},
	}
}

// fakePersister records placements and fails or blocks on demand.
type fakePersister struct {
	mu    sync.Mutex
	calls []Placement
	err   error
	gate  chan struct{}
}

func (p *fakePersister) SavePlacement(ctx context.Context, pl Placement) error {
	p.mu.Lock()
	p.calls = append(p.calls, pl)
	gate := p.gate
	err := p.err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *fakePersister) Calls() []Placement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Placement(nil), p.calls...)
}

// recordingNotifier counts failure notices.
type recordingNotifier struct {
	mu       sync.Mutex
	failures []Failure
}

func (n *recordingNotifier) NotifyFailure(f Failure) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, f)
}

func (n *recordingNotifier) Failures() []Failure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Failure(nil), n.failures...)
}

func newTestEngine(t *testing.T, p Persister) (*Engine, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	e := NewEngine(Options{Grid: testGrid, Location: time.UTC}, p, n, zaptest.NewLogger(t).Sugar())
	e.Store.Load(testItems(), testResources())
	return e, n
}

func ghostCount(s Snapshot) int {
	n := 0
	for _, it := range s.Items {
		if it.IsGhost {
			n++
		}
	}
	return n
}
