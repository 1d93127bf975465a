// internal/services/window.go
package services

import (
	"time"

	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// DayWindow computes the inclusive calendar-day window for a reminder
// offset: [startOfDay(now+days), endOfDay(now+days)] in loc. Any license
// whose expiration date falls on that calendar day is inside the window;
// licenses expiring on adjacent days are outside even when within 24 hours
// of now by elapsed time.
func DayWindow(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	day := models.StartOfDay(now, loc).AddDate(0, 0, days)
	return day, day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// RangeWindow computes the window spanning minDays through maxDays ahead of
// now, inclusive on both ends. Used for batched reporting such as the
// weekly digest.
func RangeWindow(now time.Time, minDays, maxDays int, loc *time.Location) (time.Time, time.Time) {
	start := models.StartOfDay(now, loc).AddDate(0, 0, minDays)
	end := models.StartOfDay(now, loc).AddDate(0, 0, maxDays+1).Add(-time.Nanosecond)
	return start, end
}
