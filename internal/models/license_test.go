// internal/models/license_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalendarDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same day", date(2025, 6, 1), date(2025, 6, 1), 0},
		{"next day", date(2025, 6, 1), date(2025, 6, 2), 1},
		{"late evening to early morning still one day", time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC), time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC), 1},
		{"thirty days", date(2025, 1, 1), date(2025, 1, 31), 30},
		{"past is negative", date(2025, 6, 10), date(2025, 6, 5), -5},
		{"across a year boundary", date(2024, 12, 30), date(2025, 1, 2), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalendarDaysBetween(tt.from, tt.to, time.UTC))
		})
	}
}

func TestLicenseStatusAt(t *testing.T) {
	now := date(2025, 6, 15)
	soonThreshold := 30

	tests := []struct {
		name       string
		expiration time.Time
		graceDays  int
		want       LicenseStatus
	}{
		{"far in the future", date(2025, 12, 1), 0, LicenseStatusCurrent},
		{"just outside threshold", date(2025, 7, 16), 0, LicenseStatusCurrent},
		{"exactly at threshold", date(2025, 7, 15), 0, LicenseStatusExpiringSoon},
		{"expires today", date(2025, 6, 15), 0, LicenseStatusExpiringSoon},
		{"expired yesterday, no grace", date(2025, 6, 14), 0, LicenseStatusExpired},
		{"expired yesterday, inside grace", date(2025, 6, 14), 5, LicenseStatusExpiringSoon},
		{"expired past grace", date(2025, 6, 9), 5, LicenseStatusExpired},
		{"last day of grace", date(2025, 6, 10), 5, LicenseStatusExpiringSoon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			license := &License{
				ExpirationDate:  tt.expiration,
				GracePeriodDays: tt.graceDays,
			}
			assert.Equal(t, tt.want, license.StatusAt(now, time.UTC, soonThreshold))
		})
	}
}

func TestBusinessRecipients(t *testing.T) {
	business := &Business{
		Memberships: []BusinessMembership{
			{Role: MembershipRoleOwner, User: User{Email: "owner@example.com"}},
			{Role: MembershipRoleAdmin, User: User{Email: "admin@example.com"}},
			{Role: MembershipRoleViewer, User: User{Email: "viewer@example.com"}},
		},
	}

	recipients := business.Recipients()
	assert.Len(t, recipients, 2)
	assert.Equal(t, "owner@example.com", recipients[0].Email)
	assert.Equal(t, "admin@example.com", recipients[1].Email)
}

func TestBusinessSMSEntitled(t *testing.T) {
	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{"no subscription", nil, false},
		{"free plan", &Subscription{Plan: SubscriptionPlanFree, Status: SubscriptionStatusActive}, false},
		{"pro active", &Subscription{Plan: SubscriptionPlanPro, Status: SubscriptionStatusActive}, true},
		{"pro past due", &Subscription{Plan: SubscriptionPlanPro, Status: SubscriptionStatusPastDue}, false},
		{"pro canceled", &Subscription{Plan: SubscriptionPlanPro, Status: SubscriptionStatusCanceled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			business := &Business{Subscription: tt.sub}
			assert.Equal(t, tt.want, business.SMSEntitled())
		})
	}
}
