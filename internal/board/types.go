package board

import (
	"maps"
	"time"
)

// SourceKind tells where a schedulable item came from.
type SourceKind string

const (
	SourceJob   SourceKind = "job"
	SourceEvent SourceKind = "event"
)

// Status is the lifecycle state of an internal job. External events carry
// the empty status.
type Status string

const (
	StatusNone          Status = ""
	StatusUnscheduled   Status = "unscheduled"
	StatusScheduled     Status = "scheduled"
	StatusStarted       Status = "started"
	StatusInProgress    Status = "in_progress"
	StatusOnHold        Status = "on_hold"
	StatusAwaitingParts Status = "awaiting_parts"
	StatusComplete      Status = "complete"
	StatusInvoiced      Status = "invoiced"
)

// Valid reports whether s is one of the known job statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnscheduled, StatusScheduled, StatusStarted, StatusInProgress,
		StatusOnHold, StatusAwaitingParts, StatusComplete, StatusInvoiced:
		return true
	}
	return false
}

// Item is a job or external calendar event placed (or placeable) on the board.
// An empty ResourceID means the item is unassigned.
type Item struct {
	ID          string         `json:"id"`
	SourceKind  SourceKind     `json:"sourceKind"`
	ResourceID  string         `json:"resourceId,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Status      Status         `json:"status,omitempty"`
	IsGhost     bool           `json:"isGhost,omitempty"`
	Title       string         `json:"title"`
	CustomerRef string         `json:"customerRef,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Duration returns End - Start.
func (it Item) Duration() time.Duration {
	return it.End.Sub(it.Start)
}

// Assigned reports whether the item sits in a technician column.
func (it Item) Assigned() bool {
	return it.ResourceID != ""
}

func (it Item) clone() Item {
	if it.Metadata != nil {
		it.Metadata = maps.Clone(it.Metadata)
	}
	return it
}

// Resource is a technician column on the board.
type Resource struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ColorTag    string `json:"colorTag"`
}

// SnapGrid is the time discretization of the board.
type SnapGrid struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
}

// DefaultSlotMinutes is the fixed snap interval.
const DefaultSlotMinutes = 15

// Minutes returns the number of minutes the grid spans in one day.
func (g SnapGrid) Minutes() int {
	return (g.EndHour - g.StartHour) * 60
}

// Origin is the placement of an item before a drag began.
type Origin struct {
	ResourceID string    `json:"resourceId,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     Status    `json:"status,omitempty"`
}

func originOf(it Item) Origin {
	return Origin{ResourceID: it.ResourceID, Start: it.Start, End: it.End, Status: it.Status}
}

// Patch lists the fields to change on an item. Nil fields are left alone; a
// pointer to the empty string unassigns the item.
type Patch struct {
	ResourceID *string
	Start      *time.Time
	End        *time.Time
	Status     *Status
}

func (o Origin) patch() Patch {
	return Patch{ResourceID: &o.ResourceID, Start: &o.Start, End: &o.End, Status: &o.Status}
}

// Placement is the record handed to the job persistence collaborator.
type Placement struct {
	ID         string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     Status
}

func placementOf(it Item) Placement {
	return Placement{ID: it.ID, ResourceID: it.ResourceID, Start: it.Start, End: it.End, Status: it.Status}
}
