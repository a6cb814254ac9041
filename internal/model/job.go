package model

import "time"

// Job is an internal work order as stored by the job directory.
type Job struct {
	ID            string    `gorm:"primaryKey;size:64"`
	CustomerID    string    `gorm:"index;size:64"`
	TechnicianID  *string   `gorm:"index;size:64"`
	Title         string    `gorm:"size:256;not null"`
	Description   string    `gorm:"type:text"`
	ScheduleStart time.Time `gorm:"index"`
	ScheduleEnd   time.Time
	Unscheduled   bool   `gorm:"index;not null"`
	Status        string `gorm:"size:32;not null"`
	Details       string `gorm:"type:text"` // JSON object, opaque to the board
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Associations
	Technician *Technician `gorm:"foreignKey:TechnicianID"`
}

// CalendarEvent is an event pulled from the external calendar feed.
type CalendarEvent struct {
	ID           string    `gorm:"primaryKey;size:128"` // Upstream ID
	Title        string    `gorm:"size:512;not null"`
	Start        time.Time `gorm:"index;not null"`
	End          time.Time `gorm:"not null"`
	CreatedBy    string    `gorm:"size:256"`
	TechnicianID *string   `gorm:"index;size:64"`
	SyncedAt     time.Time `gorm:"not null"`
}
