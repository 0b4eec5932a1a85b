package models

import "time"

// Feedback stores an attendee's optional post-event feedback. At most one
// entry is created per user; the reference to User is soft, deleting the user
// does not cascade here.
type Feedback struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Name        string    `gorm:"size:128" json:"name"`
	Feedback    string    `gorm:"type:text" json:"feedback"`
	SubmittedAt time.Time `gorm:"index" json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}
