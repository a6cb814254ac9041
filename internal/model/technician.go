package model

import "time"

// Technician is a crew member who can be assigned work. Technicians are
// maintained by the office tooling; the board only reads them.
type Technician struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:128;not null"`
	ColorTag    string `gorm:"size:32"`
	Active      bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer is the minimal customer record needed to label jobs.
type Customer struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:256;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
