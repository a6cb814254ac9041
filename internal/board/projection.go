package board

import (
	"slices"
	"strings"
	"time"
)

// ViewMode is the layout of the board.
type ViewMode string

const (
	ViewDay  ViewMode = "day"
	ViewWeek ViewMode = "week"
)

// DefaultMinimumVisibleMinutes is the smallest rendered block height.
const DefaultMinimumVisibleMinutes = 15

// ViewParams are the view settings supplied by the UI shell.
type ViewParams struct {
	Date                  time.Time
	Mode                  ViewMode
	StartHour             int
	EndHour               int
	MinimumVisibleMinutes int
	Location              *time.Location
}

func (v ViewParams) location() *time.Location {
	if v.Location != nil {
		return v.Location
	}
	return v.Date.Location()
}

// Days returns the calendar days shown: the date itself for day view, or the
// Monday-to-Sunday week containing it.
func (v ViewParams) Days() []time.Time {
	loc := v.location()
	y, m, d := v.Date.In(loc).Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if v.Mode != ViewWeek {
		return []time.Time{first}
	}
	offset := (int(first.Weekday()) + 6) % 7
	first = first.AddDate(0, 0, -offset)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return days
}

// Window returns the half-open time range [from, to) covered by the view.
func (v ViewParams) Window() (time.Time, time.Time) {
	days := v.Days()
	return days[0], days[len(days)-1].AddDate(0, 0, 1)
}

// CustomerNames resolves customer references to display names.
type CustomerNames interface {
	CustomerName(ref string) (string, bool)
}

// Block is the geometry of one item. Offsets and heights are in minutes; the
// UI shell scales them to pixels.
type Block struct {
	ItemID         string     `json:"itemId"`
	SourceKind     SourceKind `json:"sourceKind"`
	Title          string     `json:"title"`
	Status         Status     `json:"status,omitempty"`
	ResourceID     string     `json:"resourceId,omitempty"`
	TechnicianName string     `json:"technicianName,omitempty"`
	CustomerName   string     `json:"customerName,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	TopOffset      int        `json:"topOffset"`
	Height         int        `json:"height"`
	IsGhost        bool       `json:"isGhost,omitempty"`
	Dragging       bool       `json:"dragging,omitempty"`
}

// Lane is the column of one technician on one day.
type Lane struct {
	ResourceID     string    `json:"resourceId"`
	TechnicianName string    `json:"technicianName"`
	ColorTag       string    `json:"colorTag"`
	Day            time.Time `json:"day"`
	Blocks         []Block   `json:"blocks"`
}

// View is the projected board.
type View struct {
	Version   uint64      `json:"version"`
	Mode      ViewMode    `json:"mode"`
	StartHour int         `json:"startHour"`
	EndHour   int         `json:"endHour"`
	Days      []time.Time `json:"days"`
	Lanes     []Lane      `json:"lanes"`
	Backlog   []Block     `json:"backlog"`
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

type laneKey struct {
	resource string
	day      dayKey
}

// Project derives lane geometry from a Store snapshot. The ghost is laid out
// like any other item and only differs by IsGhost; the block being dragged
// is flagged with Dragging. Unassigned jobs go to the backlog.
func Project(snap Snapshot, session *DragSession, v ViewParams, customers CustomerNames) View {
	loc := v.location()
	minVisible := v.MinimumVisibleMinutes
	if minVisible <= 0 {
		minVisible = DefaultMinimumVisibleMinutes
	}
	days := v.Days()

	names := make(map[string]Resource, len(snap.Resources))
	for _, r := range snap.Resources {
		names[r.ID] = r
	}

	out := View{
		Version:   snap.Version,
		Mode:      v.Mode,
		StartHour: v.StartHour,
		EndHour:   v.EndHour,
		Days:      days,
		Lanes:     make([]Lane, 0, len(snap.Resources)*len(days)),
		Backlog:   []Block{},
	}
	if out.Mode == "" {
		out.Mode = ViewDay
	}

	index := make(map[laneKey]int, cap(out.Lanes))
	for _, r := range snap.Resources {
		for _, d := range days {
			index[laneKey{r.ID, keyOf(d)}] = len(out.Lanes)
			out.Lanes = append(out.Lanes, Lane{
				ResourceID:     r.ID,
				TechnicianName: r.DisplayName,
				ColorTag:       r.ColorTag,
				Day:            d,
				Blocks:         []Block{},
			})
		}
	}

	for _, it := range snap.Items {
		start := it.Start.In(loc)
		b := Block{
			ItemID:     it.ID,
			SourceKind: it.SourceKind,
			Title:      it.Title,
			Status:     it.Status,
			ResourceID: it.ResourceID,
			Start:      it.Start,
			End:        it.End,
			TopOffset:  start.Hour()*60 + start.Minute() - v.StartHour*60,
			Height:     max(int(it.Duration()/time.Minute), minVisible),
			IsGhost:    it.IsGhost,
			Dragging:   session != nil && !it.IsGhost && it.ID == session.ItemID,
		}
		if r, ok := names[it.ResourceID]; ok {
			b.TechnicianName = r.DisplayName
		}
		if customers != nil && it.CustomerRef != "" {
			if name, ok := customers.CustomerName(it.CustomerRef); ok {
				b.CustomerName = name
			}
		}

		if !it.Assigned() {
			if it.SourceKind == SourceJob {
				out.Backlog = append(out.Backlog, b)
			}
			continue
		}
		i, ok := index[laneKey{it.ResourceID, keyOf(start)}]
		if !ok {
			continue
		}
		out.Lanes[i].Blocks = append(out.Lanes[i].Blocks, b)
	}

	for i := range out.Lanes {
		slices.SortFunc(out.Lanes[i].Blocks, compareBlocks)
	}
	slices.SortFunc(out.Backlog, compareBlocks)
	return out
}

func compareBlocks(a, b Block) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := strings.Compare(a.ItemID, b.ItemID); c != 0 {
		return c
	}
	switch {
	case a.IsGhost == b.IsGhost:
		return 0
	case a.IsGhost:
		return 1
	default:
		return -1
	}
}
