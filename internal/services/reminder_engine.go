// internal/services/reminder_engine.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/permitwatch/permitwatch-backend/internal/clock"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// ReminderRunner is the trigger-facing surface of the engine, split out so
// handlers and the cron scheduler can be tested against a fake.
type ReminderRunner interface {
	Run(ctx context.Context) (*RunSummary, error)
	Backfill(ctx context.Context) (*BackfillSummary, error)
	Digest(ctx context.Context) (*DigestSummary, error)
}

// RunSummary aggregates one engine run. Per-recipient failures land in
// Results with status "failed"; they never abort the batch.
type RunSummary struct {
	StartedAt         time.Time        `json:"started_at"`
	LicensesProcessed int              `json:"licenses_processed"`
	NotificationsSent int              `json:"notifications_sent"`
	Failed            int              `json:"failed"`
	Skipped           int              `json:"skipped"`
	Results           []DispatchRecord `json:"results"`
}

type DispatchRecord struct {
	LicenseID     uuid.UUID              `json:"license_id"`
	LicenseNumber string                 `json:"license_number"`
	DaysBefore    int                    `json:"days_before"`
	Channel       models.ReminderChannel `json:"channel"`
	Recipient     string                 `json:"recipient"`
	Status        string                 `json:"status"` // sent | failed | skipped
	Error         string                 `json:"error,omitempty"`
}

type BackfillSummary struct {
	LicensesScanned int `json:"licenses_scanned"`
	RowsEnsured     int `json:"rows_ensured"`
}

type DigestSummary struct {
	BusinessesNotified int `json:"businesses_notified"`
	LicensesCovered    int `json:"licenses_covered"`
}

// ReminderEngine orchestrates one scan: per-offset day windows, the license
// query, the per-recipient per-channel fan-out, dispatch, and the sent
// transition. Runs are fire-and-forget; there is no in-progress state, and
// idempotency across repeated or concurrent runs is carried entirely by the
// ReminderSchedule unique triple.
type ReminderEngine struct {
	licenses    LicenseSource
	schedules   ScheduleStore
	dispatchers map[models.ReminderChannel]Dispatcher
	clock       clock.Clock
	loc         *time.Location
	offsets     []int
	horizonDays int
}

func NewReminderEngine(licenses LicenseSource, schedules ScheduleStore, dispatchers []Dispatcher, clk clock.Clock, loc *time.Location, horizonDays int) *ReminderEngine {
	byChannel := make(map[models.ReminderChannel]Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		byChannel[d.Channel()] = d
	}

	return &ReminderEngine{
		licenses:    licenses,
		schedules:   schedules,
		dispatchers: byChannel,
		clock:       clk,
		loc:         loc,
		offsets:     models.ReminderOffsets,
		horizonDays: horizonDays,
	}
}

// Run executes one full scan. A repository failure aborts the run (nothing
// was written, so the next trigger retries from scratch); everything past
// the query is per-item and only recorded.
func (e *ReminderEngine) Run(ctx context.Context) (*RunSummary, error) {
	now := e.clock.Now()
	summary := &RunSummary{StartedAt: now}

	logrus.WithField("now", now.Format(time.RFC3339)).Info("Reminder scan started")

	for _, offset := range e.offsets {
		start, end := DayWindow(now, offset, e.loc)

		licenses, err := e.licenses.FindExpiringInWindow(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("reminder scan aborted at offset %d: %w", offset, err)
		}

		for i := range licenses {
			e.processLicense(ctx, &licenses[i], offset, summary)
			summary.LicensesProcessed++
		}
	}

	logrus.WithFields(logrus.Fields{
		"licenses_processed": summary.LicensesProcessed,
		"notifications_sent": summary.NotificationsSent,
		"failed":             summary.Failed,
		"skipped":            summary.Skipped,
	}).Info("Reminder scan completed")

	return summary, nil
}

func (e *ReminderEngine) processLicense(ctx context.Context, license *models.License, offset int, summary *RunSummary) {
	recipients := license.Business.Recipients()
	if len(recipients) == 0 {
		logrus.WithFields(logrus.Fields{
			"license_id": license.ID,
			"business":   license.Business.Name,
		}).Warn("License has no owner/admin recipients, skipping")
		return
	}

	for _, channel := range []models.ReminderChannel{models.ReminderChannelEmail, models.ReminderChannelSMS} {
		e.processChannel(ctx, license, offset, channel, recipients, summary)
	}
}

func (e *ReminderEngine) processChannel(ctx context.Context, license *models.License, offset int, channel models.ReminderChannel, recipients []models.User, summary *RunSummary) {
	dispatcher, ok := e.dispatchers[channel]
	if !ok {
		return
	}

	targets := eligibleRecipients(license, channel, recipients)
	if len(targets) == 0 {
		return
	}

	row, err := e.schedules.EnsureScheduled(ctx, license.ID, offset, channel)
	if err != nil {
		summary.Failed++
		summary.Results = append(summary.Results, DispatchRecord{
			LicenseID:     license.ID,
			LicenseNumber: license.Number,
			DaysBefore:    offset,
			Channel:       channel,
			Status:        "failed",
			Error:         err.Error(),
		})
		return
	}

	if row.Status == models.ReminderStatusSent {
		// An earlier run for this offset already delivered
		summary.Skipped++
		summary.Results = append(summary.Results, DispatchRecord{
			LicenseID:     license.ID,
			LicenseNumber: license.Number,
			DaysBefore:    offset,
			Channel:       channel,
			Status:        "skipped",
		})
		return
	}

	msg := e.renderMessage(license, offset)

	allDelivered := true
	for _, target := range targets {
		result := dispatcher.Send(ctx, target, msg)
		record := DispatchRecord{
			LicenseID:     license.ID,
			LicenseNumber: license.Number,
			DaysBefore:    offset,
			Channel:       channel,
			Recipient:     recipientAddress(target, channel),
		}

		if result.Delivered {
			record.Status = "sent"
			summary.NotificationsSent++
		} else {
			record.Status = "failed"
			record.Error = result.Error
			summary.Failed++
			allDelivered = false
		}

		summary.Results = append(summary.Results, record)
	}

	// The row only flips to sent when every eligible recipient was
	// delivered; otherwise it stays pending so a re-run inside the same
	// window can retry. Exhausted retries are a reported failure, never a
	// silent drop.
	if allDelivered {
		if err := e.schedules.MarkSent(ctx, license.ID, offset, channel, e.clock.Now()); err != nil && !errors.Is(err, ErrAlreadySent) {
			logrus.WithFields(logrus.Fields{
				"license_id": license.ID,
				"offset":     offset,
				"channel":    channel,
			}).WithError(err).Error("Failed to mark reminder sent")
		}
	}
}

// Backfill scans the whole reminder horizon and ensures every applicable
// schedule row exists. It repairs gaps left by failed population on license
// create and seeds rows for licenses imported out of band.
func (e *ReminderEngine) Backfill(ctx context.Context) (*BackfillSummary, error) {
	now := e.clock.Now()

	licenses, err := e.licenses.FindExpiringInRange(ctx, now, 0, e.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("backfill aborted: %w", err)
	}

	summary := &BackfillSummary{LicensesScanned: len(licenses)}

	for i := range licenses {
		license := &licenses[i]
		days := license.DaysUntilExpiration(now, e.loc)

		for _, offset := range e.offsets {
			if days < offset {
				continue
			}
			for _, channel := range []models.ReminderChannel{models.ReminderChannelEmail, models.ReminderChannelSMS} {
				if _, err := e.schedules.EnsureScheduled(ctx, license.ID, offset, channel); err != nil {
					return summary, fmt.Errorf("backfill failed for license %s: %w", license.ID, err)
				}
				summary.RowsEnsured++
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"licenses_scanned": summary.LicensesScanned,
		"rows_ensured":     summary.RowsEnsured,
	}).Info("Reminder backfill completed")

	return summary, nil
}

// Digest sends each business one summary email covering every license
// expiring inside the horizon. SMS is not used for digests.
func (e *ReminderEngine) Digest(ctx context.Context) (*DigestSummary, error) {
	now := e.clock.Now()

	dispatcher, ok := e.dispatchers[models.ReminderChannelEmail]
	if !ok {
		return nil, errors.New("email dispatcher not configured")
	}

	licenses, err := e.licenses.FindExpiringInRange(ctx, now, 0, e.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("digest aborted: %w", err)
	}

	byBusiness := make(map[uuid.UUID][]*models.License)
	order := []uuid.UUID{}
	for i := range licenses {
		id := licenses[i].BusinessID
		if _, seen := byBusiness[id]; !seen {
			order = append(order, id)
		}
		byBusiness[id] = append(byBusiness[id], &licenses[i])
	}

	summary := &DigestSummary{}

	for _, businessID := range order {
		group := byBusiness[businessID]
		business := group[0].Business

		msg, err := e.renderDigest(&business, group, now)
		if err != nil {
			logrus.WithField("business_id", businessID).WithError(err).Error("Failed to render digest")
			continue
		}

		notified := false
		for _, user := range business.Recipients() {
			result := dispatcher.Send(ctx, Recipient{Name: user.Name, Email: user.Email}, msg)
			if result.Delivered {
				notified = true
			}
		}

		if notified {
			summary.BusinessesNotified++
			summary.LicensesCovered += len(group)
		}
	}

	logrus.WithFields(logrus.Fields{
		"businesses_notified": summary.BusinessesNotified,
		"licenses_covered":    summary.LicensesCovered,
	}).Info("Expiration digest completed")

	return summary, nil
}

func eligibleRecipients(license *models.License, channel models.ReminderChannel, recipients []models.User) []Recipient {
	var targets []Recipient

	for _, user := range recipients {
		switch channel {
		case models.ReminderChannelEmail:
			if user.Email != "" {
				targets = append(targets, Recipient{Name: user.Name, Email: user.Email})
			}
		case models.ReminderChannelSMS:
			// SMS is gated on both a phone number and the paid tier
			if user.Phone != "" && license.Business.SMSEntitled() {
				targets = append(targets, Recipient{Name: user.Name, Phone: user.Phone})
			}
		}
	}

	return targets
}

func recipientAddress(r Recipient, channel models.ReminderChannel) string {
	if channel == models.ReminderChannelSMS {
		return r.Phone
	}
	return r.Email
}

var reminderEmailTemplate = template.Must(template.New("reminder").Parse(`
<!DOCTYPE html>
<html>
<body>
	<h2>License Expiration Reminder</h2>
	<p>The following license for {{.BusinessName}} expires in {{.Days}} day{{if ne .Days 1}}s{{end}}:</p>
	<ul>
		<li><strong>Type:</strong> {{.Type}}</li>
		<li><strong>Number:</strong> {{.Number}}</li>
		<li><strong>Issuing authority:</strong> {{.Authority}}</li>
		<li><strong>Expiration date:</strong> {{.ExpirationDate}}</li>
	</ul>
	{{if .RenewalURL}}<p><a href="{{.RenewalURL}}">Renew now</a></p>{{end}}
	<p>PermitWatch</p>
</body>
</html>`))

var digestEmailTemplate = template.Must(template.New("digest").Parse(`
<!DOCTYPE html>
<html>
<body>
	<h2>Upcoming License Expirations for {{.BusinessName}}</h2>
	<table border="1" cellpadding="4">
		<tr><th>Type</th><th>Number</th><th>Expires</th><th>Days left</th></tr>
		{{range .Rows}}<tr><td>{{.Type}}</td><td>{{.Number}}</td><td>{{.ExpirationDate}}</td><td>{{.Days}}</td></tr>
		{{end}}
	</table>
	<p>PermitWatch</p>
</body>
</html>`))

func (e *ReminderEngine) renderMessage(license *models.License, offset int) Message {
	expiration := license.ExpirationDate.In(e.loc).Format("January 2, 2006")

	data := map[string]interface{}{
		"BusinessName":   license.Business.Name,
		"Days":           offset,
		"Type":           license.Type,
		"Number":         license.Number,
		"Authority":      license.IssuingAuthority,
		"ExpirationDate": expiration,
		"RenewalURL":     license.RenewalURL,
	}

	var buf bytes.Buffer
	if err := reminderEmailTemplate.Execute(&buf, data); err != nil {
		logrus.WithError(err).Error("Failed to render reminder email template")
	}

	plural := "s"
	if offset == 1 {
		plural = ""
	}

	return Message{
		Subject:  fmt.Sprintf("%s license %s expires in %d day%s", license.Type, license.Number, offset, plural),
		HTMLBody: buf.String(),
		Text: fmt.Sprintf("PermitWatch: %s license %s for %s expires in %d day%s (%s).",
			license.Type, license.Number, license.Business.Name, offset, plural, expiration),
	}
}

type digestRow struct {
	Type           string
	Number         string
	ExpirationDate string
	Days           int
}

func (e *ReminderEngine) renderDigest(business *models.Business, licenses []*models.License, now time.Time) (Message, error) {
	rows := make([]digestRow, 0, len(licenses))
	for _, l := range licenses {
		rows = append(rows, digestRow{
			Type:           l.Type,
			Number:         l.Number,
			ExpirationDate: l.ExpirationDate.In(e.loc).Format("2006-01-02"),
			Days:           l.DaysUntilExpiration(now, e.loc),
		})
	}

	var buf bytes.Buffer
	err := digestEmailTemplate.Execute(&buf, map[string]interface{}{
		"BusinessName": business.Name,
		"Rows":         rows,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render digest template: %w", err)
	}

	return Message{
		Subject:  fmt.Sprintf("Upcoming license expirations for %s", business.Name),
		HTMLBody: buf.String(),
	}, nil
}
