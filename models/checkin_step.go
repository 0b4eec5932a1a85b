package models

import "time"

// CheckInStep is an administrator-defined task attendees complete in order.
// Steps carry no stored sequence number; display order is derived at read time
// by natural-order sort of Name. Duplicate names are permitted and not merged.
type CheckInStep struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
