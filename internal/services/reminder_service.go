// internal/services/reminder_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// ErrAlreadySent signals that the (license, offset, channel) triple has
// already been recorded as sent. Callers treat it as "skip", never as a
// failure: it is how a re-run or a racing concurrent run discovers the work
// is done.
var ErrAlreadySent = errors.New("reminder already marked sent")

// ScheduleStore is the engine's view of the reminder schedule table.
type ScheduleStore interface {
	EnsureScheduled(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel) (*models.ReminderSchedule, error)
	MarkSent(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel, sentAt time.Time) error
}

type ReminderService struct {
	db *gorm.DB
}

func NewReminderService(db *gorm.DB) *ReminderService {
	return &ReminderService{db: db}
}

// EnsureScheduled idempotently creates the pending row for a triple. If the
// row already exists — from a previous run, the license-create hook, or a
// concurrent run racing this one — the existing row is fetched and returned
// untouched.
func (s *ReminderService) EnsureScheduled(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel) (*models.ReminderSchedule, error) {
	row := &models.ReminderSchedule{
		LicenseID:  licenseID,
		DaysBefore: daysBefore,
		Channel:    channel,
		Status:     models.ReminderStatusPending,
	}

	err := s.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return row, nil
	}

	if !isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create reminder schedule: %w", err)
	}

	var existing models.ReminderSchedule
	if err := s.db.WithContext(ctx).
		Where("license_id = ? AND days_before = ? AND channel = ?", licenseID, daysBefore, channel).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing reminder schedule: %w", err)
	}

	return &existing, nil
}

// MarkSent transitions a triple to sent. The pending→sent update is the
// common path; when no pending row exists the record is created directly as
// sent. A unique violation there, or an existing sent row, yields
// ErrAlreadySent so callers can skip instead of double-sending.
func (s *ReminderService) MarkSent(ctx context.Context, licenseID uuid.UUID, daysBefore int, channel models.ReminderChannel, sentAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.ReminderSchedule{}).
		Where("license_id = ? AND days_before = ? AND channel = ? AND status = ?",
			licenseID, daysBefore, channel, models.ReminderStatusPending).
		Updates(map[string]interface{}{
			"status":  models.ReminderStatusSent,
			"sent_at": sentAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// No pending row: either the triple is absent or it is already sent.
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ReminderSchedule{}).
		Where("license_id = ? AND days_before = ? AND channel = ?", licenseID, daysBefore, channel).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check reminder schedule: %w", err)
	}
	if count > 0 {
		return ErrAlreadySent
	}

	row := &models.ReminderSchedule{
		LicenseID:  licenseID,
		DaysBefore: daysBefore,
		Channel:    channel,
		Status:     models.ReminderStatusSent,
		SentAt:     &sentAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySent
		}
		return fmt.Errorf("failed to create sent reminder record: %w", err)
	}

	return nil
}

// PopulateForLicense proactively creates pending rows for every offset
// still ahead of now, for both channels. Called when a license is created
// or its expiration date changes; safe to call repeatedly.
func (s *ReminderService) PopulateForLicense(ctx context.Context, license *models.License, now time.Time, loc *time.Location) error {
	days := license.DaysUntilExpiration(now, loc)

	for _, offset := range models.ReminderOffsets {
		if days < offset {
			continue
		}
		for _, channel := range []models.ReminderChannel{models.ReminderChannelEmail, models.ReminderChannelSMS} {
			if _, err := s.EnsureScheduled(ctx, license.ID, offset, channel); err != nil {
				return err
			}
		}
	}

	return nil
}

// GetForLicense lists the schedule rows for one license, soonest offset
// first.
func (s *ReminderService) GetForLicense(ctx context.Context, licenseID uuid.UUID) ([]models.ReminderSchedule, error) {
	var rows []models.ReminderSchedule
	if err := s.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("days_before asc, channel asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch reminder schedules: %w", err)
	}
	return rows, nil
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation (SQLSTATE 23505). This is the explicit branch behind every
// idempotent upsert in this service.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
