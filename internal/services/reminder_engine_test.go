// internal/services/reminder_engine_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitwatch/permitwatch-backend/internal/clock"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

type fakeLicenseSource struct {
	licenses []models.License
	err      error
}

func (f *fakeLicenseSource) FindExpiringInWindow(ctx context.Context, start, end time.Time) ([]models.License, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []models.License
	for _, l := range f.licenses {
		if !l.ExpirationDate.Before(start) && !l.ExpirationDate.After(end) {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (f *fakeLicenseSource) FindExpiringInRange(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.License, error) {
	start, end := RangeWindow(now, minDays, maxDays, time.UTC)
	return f.FindExpiringInWindow(ctx, start, end)
}

type fakeScheduleStore struct {
	rows map[string]*models.ReminderSchedule
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{rows: make(map[string]*models.ReminderSchedule)}
}

func scheduleKey(licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel) string {
	return fmt.Sprintf("%s/%d/%s", licenseID, daysBefore, channel)
}

func (f *fakeScheduleStore) EnsureScheduled(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel) (*models.ReminderSchedule, error) {
	key := scheduleKey(licenseID, daysBefore, channel)
	if row, ok := f.rows[key]; ok {
		return row, nil
	}
	row := &models.ReminderSchedule{
		LicenseID:  licenseID,
		DaysBefore: daysBefore,
		Channel:    channel,
		Status:     models.ReminderStatusPending,
	}
	f.rows[key] = row
	return row, nil
}

func (f *fakeScheduleStore) MarkSent(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel, sentAt time.Time) error {
	key := scheduleKey(licenseID, daysBefore, channel)
	row, ok := f.rows[key]
	if ok && row.Status == models.ReminderStatusSent {
		return ErrAlreadySent
	}
	if !ok {
		row = &models.ReminderSchedule{LicenseID: licenseID, DaysBefore: daysBefore, Channel: channel}
		f.rows[key] = row
	}
	row.Status = models.ReminderStatusSent
	row.SentAt = &sentAt
	return nil
}

func (f *fakeScheduleStore) status(licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel) models.ReminderStatus {
	row, ok := f.rows[scheduleKey(licenseID, daysBefore, channel)]
	if !ok {
		return ""
	}
	return row.Status
}

type sentRecord struct {
	to  string
	msg Message
}

type fakeDispatcher struct {
	channel models.ReminderChannel
	failFor map[string]bool
	sent    []sentRecord
}

func (f *fakeDispatcher) Channel() models.ReminderChannel { return f.channel }

func (f *fakeDispatcher) Send(ctx context.Context, rcpt Recipient, msg Message) DispatchResult {
	to := rcpt.Email
	if f.channel == models.ReminderChannelSMS {
		to = rcpt.Phone
	}
	if f.failFor[to] {
		return DispatchResult{Error: "delivery failed after retries"}
	}
	f.sent = append(f.sent, sentRecord{to: to, msg: msg})
	return DispatchResult{Delivered: true}
}

func proBusiness(name, email, phone string) models.Business {
	return models.Business{
		Name: name,
		Memberships: []models.BusinessMembership{
			{Role: models.MembershipRoleOwner, User: models.User{Name: "Owner", Email: email, Phone: phone}},
		},
		Subscription: &models.Subscription{
			Plan:   models.SubscriptionPlanPro,
			Status: models.SubscriptionStatusActive,
		},
	}
}

func testLicense(business models.Business, number string, expiration time.Time) models.License {
	license := models.License{
		Type:             "Liquor License",
		Number:           number,
		IssuingAuthority: "City of Springfield",
		ExpirationDate:   expiration,
		Business:         business,
	}
	license.ID = uuid.New()
	return license
}

func TestEngineRunSendsBothChannels(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	license := testLicense(proBusiness("Moe's Tavern", "moe@example.com", "+15551234567"), "LL-42", now.AddDate(0, 0, 30))

	source := &fakeLicenseSource{licenses: []models.License{license}}
	store := newFakeScheduleStore()
	email := &fakeDispatcher{channel: models.ReminderChannelEmail}
	sms := &fakeDispatcher{channel: models.ReminderChannelSMS}

	engine := NewReminderEngine(source, store, []Dispatcher{email, sms}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.NotificationsSent)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, email.sent, 1)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "moe@example.com", email.sent[0].to)
	assert.Equal(t, "+15551234567", sms.sent[0].to)

	assert.Contains(t, email.sent[0].msg.Subject, "LL-42")
	assert.Contains(t, email.sent[0].msg.Subject, "30 days")
	assert.Contains(t, sms.sent[0].msg.Text, "Moe's Tavern")

	assert.Equal(t, models.ReminderStatusSent, store.status(license.ID, 30, models.ReminderChannelEmail))
	assert.Equal(t, models.ReminderStatusSent, store.status(license.ID, 30, models.ReminderChannelSMS))
}

func TestEngineRunGatesSMSOnEntitlement(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	business := proBusiness("Free Tier Deli", "deli@example.com", "+15559876543")
	business.Subscription.Plan = models.SubscriptionPlanFree
	license := testLicense(business, "FP-7", now.AddDate(0, 0, 7))

	source := &fakeLicenseSource{licenses: []models.License{license}}
	store := newFakeScheduleStore()
	email := &fakeDispatcher{channel: models.ReminderChannelEmail}
	sms := &fakeDispatcher{channel: models.ReminderChannelSMS}

	engine := NewReminderEngine(source, store, []Dispatcher{email, sms}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Len(t, email.sent, 1)
	assert.Empty(t, sms.sent)

	// No SMS schedule row is created when nobody is eligible for the channel
	assert.Equal(t, models.ReminderStatus(""), store.status(license.ID, 7, models.ReminderChannelSMS))
}

func TestEngineRunSkipsAlreadySent(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	license := testLicense(proBusiness("Moe's Tavern", "moe@example.com", ""), "LL-42", now.AddDate(0, 0, 60))

	source := &fakeLicenseSource{licenses: []models.License{license}}
	store := newFakeScheduleStore()
	require.NoError(t, store.MarkSent(context.Background(), license.ID, 60, models.ReminderChannelEmail, now.Add(-time.Hour)))

	email := &fakeDispatcher{channel: models.ReminderChannelEmail}
	engine := NewReminderEngine(source, store, []Dispatcher{email}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.NotificationsSent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, email.sent)
}

func TestEngineRunIsolatesPerLicenseFailures(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	failing := testLicense(proBusiness("Bad SMTP Inc", "bounce@example.com", ""), "A-1", now.AddDate(0, 0, 14))
	healthy := testLicense(proBusiness("Fine Foods", "fine@example.com", ""), "B-2", now.AddDate(0, 0, 14))

	source := &fakeLicenseSource{licenses: []models.License{failing, healthy}}
	store := newFakeScheduleStore()
	email := &fakeDispatcher{
		channel: models.ReminderChannelEmail,
		failFor: map[string]bool{"bounce@example.com": true},
	}

	engine := NewReminderEngine(source, store, []Dispatcher{email}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.LicensesProcessed)

	// The failed triple stays pending so a re-run inside the window retries it
	assert.Equal(t, models.ReminderStatusPending, store.status(failing.ID, 14, models.ReminderChannelEmail))
	assert.Equal(t, models.ReminderStatusSent, store.status(healthy.ID, 14, models.ReminderChannelEmail))

	var failedRecord *DispatchRecord
	for i := range summary.Results {
		if summary.Results[i].Status == "failed" {
			failedRecord = &summary.Results[i]
		}
	}
	require.NotNil(t, failedRecord)
	assert.Equal(t, failing.ID, failedRecord.LicenseID)
	assert.Contains(t, failedRecord.Error, "delivery failed")
}

func TestEngineRunAbortsOnRepositoryError(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	source := &fakeLicenseSource{err: errors.New("connection reset")}

	engine := NewReminderEngine(source, newFakeScheduleStore(), []Dispatcher{&fakeDispatcher{channel: models.ReminderChannelEmail}}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEngineRunRepeatedIsIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	license := testLicense(proBusiness("Moe's Tavern", "moe@example.com", ""), "LL-42", now.AddDate(0, 0, 1))

	source := &fakeLicenseSource{licenses: []models.License{license}}
	store := newFakeScheduleStore()
	email := &fakeDispatcher{channel: models.ReminderChannelEmail}

	engine := NewReminderEngine(source, store, []Dispatcher{email}, clock.Fixed(now), time.UTC, 90)

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	second, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.NotificationsSent)
	assert.Equal(t, 0, second.NotificationsSent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, email.sent, 1)
}

func TestEngineBackfillEnsuresElapsedOffsets(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	// 45 days out: offsets 30, 14, 7, 1 are still ahead; 90 and 60 have passed
	license := testLicense(proBusiness("Moe's Tavern", "moe@example.com", "+15551234567"), "LL-42", now.AddDate(0, 0, 45))

	source := &fakeLicenseSource{licenses: []models.License{license}}
	store := newFakeScheduleStore()

	engine := NewReminderEngine(source, store, nil, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Backfill(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.LicensesScanned)
	assert.Equal(t, 8, summary.RowsEnsured)
	assert.Equal(t, models.ReminderStatusPending, store.status(license.ID, 30, models.ReminderChannelEmail))
	assert.Equal(t, models.ReminderStatusPending, store.status(license.ID, 1, models.ReminderChannelSMS))
	assert.Equal(t, models.ReminderStatus(""), store.status(license.ID, 60, models.ReminderChannelEmail))
}

func TestEngineDigestGroupsByBusiness(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	business := proBusiness("Moe's Tavern", "moe@example.com", "")
	first := testLicense(business, "LL-42", now.AddDate(0, 0, 20))
	second := testLicense(business, "HP-9", now.AddDate(0, 0, 55))
	second.BusinessID = first.BusinessID

	source := &fakeLicenseSource{licenses: []models.License{first, second}}
	email := &fakeDispatcher{channel: models.ReminderChannelEmail}

	engine := NewReminderEngine(source, newFakeScheduleStore(), []Dispatcher{email}, clock.Fixed(now), time.UTC, 90)

	summary, err := engine.Digest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BusinessesNotified)
	assert.Equal(t, 2, summary.LicensesCovered)
	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].msg.Subject, "Moe's Tavern")
	assert.Contains(t, email.sent[0].msg.HTMLBody, "LL-42")
	assert.Contains(t, email.sent[0].msg.HTMLBody, "HP-9")
}
