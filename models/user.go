package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered event attendee. The mobile number is intended
// to be unique but is enforced by a pre-insert existence query rather than a
// database constraint, so concurrent registrations can race.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"size:128;not null" json:"name"`
	Mobile              string         `gorm:"size:20;index;not null" json:"mobile"`
	CurrentCheckInIndex int            `gorm:"default:0" json:"current_check_in_index"`
	AllChecksCompleted  bool           `gorm:"default:false" json:"all_checks_completed"`
	RegisterIP          string         `gorm:"size:45" json:"register_ip"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	Feedbacks           []Feedback     `json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
