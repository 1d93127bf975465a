// internal/models/reminder.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderSchedule is the durable idempotency record for one reminder
// obligation: "license L gets a reminder D days before expiration via
// channel C". The (license_id, days_before, channel) triple is unique and is
// the sole deduplication key across scheduler runs; there is no secondary
// dedup by calendar day.
type ReminderSchedule struct {
	BaseModel
	LicenseID  uuid.UUID       `json:"license_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_reminder_triple"`
	DaysBefore int             `json:"days_before" gorm:"not null;uniqueIndex:idx_reminder_triple"`
	Channel    ReminderChannel `json:"channel" gorm:"type:varchar(10);not null;uniqueIndex:idx_reminder_triple"`
	Status     ReminderStatus  `json:"status" gorm:"type:varchar(10);not null;default:'pending';index"`
	SentAt     *time.Time      `json:"sent_at"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
