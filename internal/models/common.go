// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Enums
type MembershipRole string

const (
	MembershipRoleOwner  MembershipRole = "owner"
	MembershipRoleAdmin  MembershipRole = "admin"
	MembershipRoleViewer MembershipRole = "viewer"
)

// IsRecipient reports whether a member with this role receives expiration
// reminders. Viewers never do.
func (r MembershipRole) IsRecipient() bool {
	return r == MembershipRoleOwner || r == MembershipRoleAdmin
}

type LicenseStatus string

const (
	LicenseStatusCurrent      LicenseStatus = "current"
	LicenseStatusExpiringSoon LicenseStatus = "expiring_soon"
	LicenseStatusExpired      LicenseStatus = "expired"
)

type ReminderChannel string

const (
	ReminderChannelEmail ReminderChannel = "email"
	ReminderChannelSMS   ReminderChannel = "sms"
)

type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "pending"
	ReminderStatusSent    ReminderStatus = "sent"
)

type SubscriptionPlan string

const (
	SubscriptionPlanFree SubscriptionPlan = "free"
	SubscriptionPlanPro  SubscriptionPlan = "pro"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// ReminderOffsets is the fixed set of calendar days before expiration at
// which reminders fire. The exact set is part of the customer-visible
// contract; changing it changes reminder cadence for every tenant.
var ReminderOffsets = []int{90, 60, 30, 14, 7, 1}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// CalendarDaysBetween is the canonical "days until" computation used by both
// the derived license status and the reminder windows: the number of whole
// calendar days between the days containing from and to, in loc. Negative
// when to is in the past.
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	a := StartOfDay(from, loc)
	b := StartOfDay(to, loc)
	return int(b.Sub(a).Hours() / 24)
}
