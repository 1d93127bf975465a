// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	BusinessID       uuid.UUID `json:"business_id" gorm:"type:uuid;not null;index"`
	Type             string    `json:"type" gorm:"size:100;not null"`
	Number           string    `json:"number" gorm:"size:100;not null"`
	IssuingAuthority string    `json:"issuing_authority" gorm:"size:255;not null"`
	IssueDate        time.Time `json:"issue_date" gorm:"not null"`
	ExpirationDate   time.Time `json:"expiration_date" gorm:"not null;index"`
	RenewalURL       string    `json:"renewal_url,omitempty" gorm:"size:512"`
	GracePeriodDays  int       `json:"grace_period_days" gorm:"default:0"`
	Notes            string    `json:"notes,omitempty" gorm:"type:text"`

	// Relationships
	Business  Business           `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
	Reminders []ReminderSchedule `json:"reminders,omitempty" gorm:"foreignKey:LicenseID"`
	Documents []LicenseDocument  `json:"documents,omitempty" gorm:"foreignKey:LicenseID"`
}

// DaysUntilExpiration is the calendar-day difference between now and the
// expiration date, in loc. Zero means the license expires today; negative
// means it is past its expiration date.
func (l *License) DaysUntilExpiration(now time.Time, loc *time.Location) int {
	return CalendarDaysBetween(now, l.ExpirationDate, loc)
}

// StatusAt derives the license status from now. Status is never stored: it
// is recomputed on every read so a license flips state the moment the
// calendar does. The grace period extends the window during which an
// already-expired license still counts as expiring_soon rather than expired.
func (l *License) StatusAt(now time.Time, loc *time.Location, soonThreshold int) LicenseStatus {
	days := l.DaysUntilExpiration(now, loc)
	if days < -l.GracePeriodDays {
		return LicenseStatusExpired
	}
	if days < 0 {
		// past expiration but inside the grace period
		return LicenseStatusExpiringSoon
	}
	if days <= soonThreshold {
		return LicenseStatusExpiringSoon
	}
	return LicenseStatusCurrent
}
