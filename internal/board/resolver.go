package board

import (
	"math"
	"time"
)

// Pointer is a raw pointer position in board pixels.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Column is one drop column of the grid: a technician on a calendar day.
type Column struct {
	ResourceID string    `json:"resourceId"`
	Day        time.Time `json:"day"`
	Assignable bool      `json:"assignable"`
}

// GridLayout maps pixels onto columns and minutes. Day view has one column per
// technician, week view one per technician and day.
type GridLayout struct {
	OriginX         float64  `json:"originX"`
	OriginY         float64  `json:"originY"`
	ColumnWidth     float64  `json:"columnWidth"`
	PixelsPerMinute float64  `json:"pixelsPerMinute"`
	Columns         []Column `json:"columns"`
}

// Locate returns the column under p and the minute offset of p from the top
// of the grid.
func (l *GridLayout) Locate(p Pointer) (Column, float64, error) {
	if l == nil || l.ColumnWidth <= 0 || l.PixelsPerMinute <= 0 {
		return Column{}, 0, ErrOutsideGrid
	}
	dx := p.X - l.OriginX
	// Bounds are checked on floats: converting a huge or NaN offset to int
	// is undefined.
	if !(dx >= 0) || dx >= float64(len(l.Columns))*l.ColumnWidth {
		return Column{}, 0, ErrOutsideGrid
	}
	idx := int(dx / l.ColumnWidth)
	if idx < 0 || idx >= len(l.Columns) {
		return Column{}, 0, ErrOutsideGrid
	}
	return l.Columns[idx], (p.Y - l.OriginY) / l.PixelsPerMinute, nil
}

// Candidate is a snapped placement proposal. Reason is set when Valid is false.
type Candidate struct {
	ResourceID string    `json:"resourceId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Valid      bool      `json:"valid"`
	Reason     error     `json:"-"`
}

// Duration returns End - Start.
func (c Candidate) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// Resolver turns pointer positions into snapped placement candidates. It has
// no state beyond its grid and is safe to call on every pointer move.
type Resolver struct {
	Grid SnapGrid
	// Location is the board's time zone. Column days are read as calendar
	// dates and placed in it. Nil keeps each column day's own zone.
	Location *time.Location
}

// NewResolver returns a Resolver for grid. A zero slot size falls back to
// DefaultSlotMinutes.
func NewResolver(grid SnapGrid) Resolver {
	if grid.SlotMinutes <= 0 {
		grid.SlotMinutes = DefaultSlotMinutes
	}
	return Resolver{Grid: grid}
}

// Resolve locates p on layout and resolves a candidate for an item of the
// given duration.
func (r Resolver) Resolve(layout *GridLayout, p Pointer, duration time.Duration) Candidate {
	col, minute, err := layout.Locate(p)
	if err != nil {
		return Candidate{Reason: err}
	}
	return r.ResolveColumn(col, minute, duration)
}

// ResolveColumn snaps minute (minutes after the grid's start hour) to the slot
// grid and validates the result against the grid bounds. The duration is kept
// as is: a candidate that would end after EndHour is invalid, never truncated.
func (r Resolver) ResolveColumn(col Column, minute float64, duration time.Duration) Candidate {
	c := Candidate{ResourceID: col.ResourceID}
	if !col.Assignable || col.ResourceID == "" {
		c.Reason = ErrUnassignableColumn
		return c
	}

	if math.IsNaN(minute) || minute > float64(r.Grid.Minutes()) {
		c.Reason = ErrOutOfBounds
		return c
	}
	if minute < 0 {
		minute = 0
	}
	slot := r.Grid.SlotMinutes
	snapped := int(math.Round(minute/float64(slot))) * slot

	y, m, d := col.Day.Date()
	loc := col.Day.Location()
	if r.Location != nil {
		loc = r.Location
	}
	c.Start = time.Date(y, m, d, r.Grid.StartHour, snapped, 0, 0, loc)
	c.End = c.Start.Add(duration)

	limit := time.Date(y, m, d, r.Grid.EndHour, 0, 0, 0, loc)
	if duration <= 0 || c.End.After(limit) {
		c.Reason = ErrOutOfBounds
		return c
	}
	c.Valid = true
	return c
}
