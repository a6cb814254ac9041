package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customerMap map[string]string

func (m customerMap) CustomerName(ref string) (string, bool) {
	name, ok := m[ref]
	return name, ok
}

func dayView() ViewParams {
	return ViewParams{Date: at(12, 0), Mode: ViewDay, StartHour: 7, EndHour: 19, MinimumVisibleMinutes: 30, Location: time.UTC}
}

func laneFor(t *testing.T, v View, resource string, day time.Time) Lane {
	t.Helper()
	for _, l := range v.Lanes {
		if l.ResourceID == resource && l.Day.Equal(day) {
			return l
		}
	}
	t.Fatalf("no lane for %s on %s", resource, day)
	return Lane{}
}

func TestProject_DayGeometry(t *testing.T) {
	items := append(testItems(),
		Item{ID: "J3", SourceKind: SourceJob, ResourceID: "A", Start: at(7, 30), End: at(7, 45), Status: StatusStarted, Title: "Quick check"},
		Item{ID: "J4", SourceKind: SourceJob, ResourceID: "A", Start: at(9, 0).AddDate(0, 0, 1), End: at(10, 0).AddDate(0, 0, 1), Status: StatusScheduled},
	)
	snap := Snapshot{Version: 7, Items: items, Resources: testResources()}

	v := Project(snap, nil, dayView(), customerMap{"cust-1": "Dana Whitfield"})

	assert.Equal(t, uint64(7), v.Version)
	require.Len(t, v.Days, 1)
	require.Len(t, v.Lanes, 3)

	a := laneFor(t, v, "A", testDay)
	require.Len(t, a.Blocks, 2, "J4 is outside the day")
	assert.Equal(t, "J3", a.Blocks[0].ItemID)
	assert.Equal(t, 30, a.Blocks[0].TopOffset)
	assert.Equal(t, 30, a.Blocks[0].Height, "short items get the minimum visible height")

	j1 := a.Blocks[1]
	assert.Equal(t, "J1", j1.ItemID)
	assert.Equal(t, 120, j1.TopOffset)
	assert.Equal(t, 60, j1.Height)
	assert.Equal(t, "Alex", j1.TechnicianName)
	assert.Equal(t, "Dana Whitfield", j1.CustomerName)

	b := laneFor(t, v, "B", testDay)
	require.Len(t, b.Blocks, 1)
	assert.Equal(t, SourceEvent, b.Blocks[0].SourceKind)

	require.Len(t, v.Backlog, 1)
	assert.Equal(t, "J2", v.Backlog[0].ItemID)
	assert.Empty(t, v.Backlog[0].TechnicianName)
}

func TestProject_WeekGroupsByDay(t *testing.T) {
	thu := at(10, 0).AddDate(0, 0, 3)
	items := []Item{
		{ID: "J1", SourceKind: SourceJob, ResourceID: "A", Start: at(9, 0), End: at(10, 0), Status: StatusScheduled},
		{ID: "J5", SourceKind: SourceJob, ResourceID: "A", Start: thu, End: thu.Add(90 * time.Minute), Status: StatusScheduled},
		{ID: "J6", SourceKind: SourceJob, ResourceID: "A", Start: at(9, 0).AddDate(0, 0, 7), End: at(10, 0).AddDate(0, 0, 7), Status: StatusScheduled},
	}
	view := dayView()
	view.Mode = ViewWeek
	view.Date = at(8, 0).AddDate(0, 0, 2) // Wednesday

	v := Project(Snapshot{Items: items, Resources: testResources()}, nil, view, nil)

	require.Len(t, v.Days, 7)
	assert.Equal(t, testDay, v.Days[0], "weeks start on Monday")
	assert.Len(t, v.Lanes, 21)

	mon := laneFor(t, v, "A", testDay)
	require.Len(t, mon.Blocks, 1)
	assert.Equal(t, "J1", mon.Blocks[0].ItemID)

	thuLane := laneFor(t, v, "A", testDay.AddDate(0, 0, 3))
	require.Len(t, thuLane.Blocks, 1)
	assert.Equal(t, 180, thuLane.Blocks[0].TopOffset)
	assert.Equal(t, 90, thuLane.Blocks[0].Height)

	from, to := view.Window()
	assert.Equal(t, testDay, from)
	assert.Equal(t, testDay.AddDate(0, 0, 7), to)
}

func TestProject_GhostIsAnOrdinaryBlock(t *testing.T) {
	e, _ := newTestEngine(t, &fakePersister{})
	s, err := e.Drag.Begin("J1", testLayout())
	require.NoError(t, err)
	_, err = e.Drag.Hover(s.ID, pointerAt(1, 14, 7))
	require.NoError(t, err)

	v := e.Project(e.ViewParams(at(12, 0), ViewDay), nil)

	a := laneFor(t, v, "A", testDay)
	require.Len(t, a.Blocks, 1)
	assert.True(t, a.Blocks[0].Dragging)
	assert.False(t, a.Blocks[0].IsGhost)

	b := laneFor(t, v, "B", testDay)
	require.Len(t, b.Blocks, 2)
	ghost := b.Blocks[1]
	assert.Equal(t, "J1", ghost.ItemID)
	assert.True(t, ghost.IsGhost)
	assert.False(t, ghost.Dragging)
	assert.Equal(t, 420, ghost.TopOffset)
	assert.Equal(t, 60, ghost.Height)
	assert.Equal(t, "Blair", ghost.TechnicianName)

	require.NoError(t, e.Drag.Cancel(s.ID))
	v = e.Project(e.ViewParams(at(12, 0), ViewDay), nil)
	assert.Len(t, laneFor(t, v, "B", testDay).Blocks, 1)
	assert.False(t, laneFor(t, v, "A", testDay).Blocks[0].Dragging)
}
