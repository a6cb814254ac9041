package store

import "time"

// FeedEvent represents a single event record from the calendar sync feed.
type FeedEvent struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Start               string  `json:"start"`
	End                 string  `json:"end"`
	CreatedBy           string  `json:"createdBy"`
	MatchedTechnicianID *string `json:"matchedTechnicianId"`

	StartParsed  time.Time `json:"-"`
	EndParsed    time.Time `json:"-"`
	TechnicianID *string   `json:"-"` // matched by the feed or by title parsing
}

// EventSyncResult counts what a calendar sync changed.
type EventSyncResult struct {
	Upserted int
	Removed  int
}
