// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/clock"
	"github.com/permitwatch/permitwatch-backend/internal/models"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

// LicenseSource is the engine's read-only view of the license repository:
// expiration queries with business, subscription, and recipient contacts
// resolved. No side effects.
type LicenseSource interface {
	FindExpiringInWindow(ctx context.Context, start, end time.Time) ([]models.License, error)
	FindExpiringInRange(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.License, error)
}

type LicenseService struct {
	db        *gorm.DB
	reminders *ReminderService
	clock     clock.Clock
	loc       *time.Location
}

type CreateLicenseRequest struct {
	BusinessID       uuid.UUID `json:"business_id" validate:"required"`
	Type             string    `json:"type" validate:"required,max=100"`
	Number           string    `json:"number" validate:"required,max=100"`
	IssuingAuthority string    `json:"issuing_authority" validate:"required,max=255"`
	IssueDate        string    `json:"issue_date" validate:"required"`
	ExpirationDate   string    `json:"expiration_date" validate:"required"`
	RenewalURL       string    `json:"renewal_url,omitempty" validate:"omitempty,url,max=512"`
	GracePeriodDays  int       `json:"grace_period_days,omitempty" validate:"omitempty,min=0,max=365"`
	Notes            string    `json:"notes,omitempty"`
}

type UpdateLicenseRequest struct {
	Type             *string `json:"type,omitempty" validate:"omitempty,max=100"`
	Number           *string `json:"number,omitempty" validate:"omitempty,max=100"`
	IssuingAuthority *string `json:"issuing_authority,omitempty" validate:"omitempty,max=255"`
	IssueDate        *string `json:"issue_date,omitempty"`
	ExpirationDate   *string `json:"expiration_date,omitempty"`
	RenewalURL       *string `json:"renewal_url,omitempty" validate:"omitempty,url,max=512"`
	GracePeriodDays  *int    `json:"grace_period_days,omitempty" validate:"omitempty,min=0,max=365"`
	Notes            *string `json:"notes,omitempty"`
}

// LicenseView is a License decorated with its derived fields. Status is
// never stored; it is recomputed from the clock on every read.
type LicenseView struct {
	models.License
	Status              models.LicenseStatus `json:"status"`
	DaysUntilExpiration int                  `json:"days_until_expiration"`
}

func NewLicenseService(db *gorm.DB, reminders *ReminderService, clk clock.Clock, loc *time.Location) *LicenseService {
	return &LicenseService{
		db:        db,
		reminders: reminders,
		clock:     clk,
		loc:       loc,
	}
}

func (s *LicenseService) CreateLicense(ctx context.Context, userID uuid.UUID, req *CreateLicenseRequest) (*models.License, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	role, err := s.memberRole(ctx, req.BusinessID, userID)
	if err != nil {
		return nil, err
	}
	if role == models.MembershipRoleViewer {
		return nil, errors.New("viewers cannot create licenses")
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid issue_date: %w", err)
	}
	expirationDate, err := parseDate(req.ExpirationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration_date: %w", err)
	}
	if expirationDate.Before(issueDate) {
		return nil, errors.New("expiration date cannot precede issue date")
	}

	license := &models.License{
		BusinessID:       req.BusinessID,
		Type:             req.Type,
		Number:           req.Number,
		IssuingAuthority: req.IssuingAuthority,
		IssueDate:        issueDate,
		ExpirationDate:   expirationDate,
		RenewalURL:       req.RenewalURL,
		GracePeriodDays:  req.GracePeriodDays,
		Notes:            req.Notes,
	}

	if err := s.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	// Proactively populate the reminder schedule for every offset still
	// ahead. Failures here do not undo the license; the backfill job will
	// fill any gap.
	if err := s.reminders.PopulateForLicense(ctx, license, s.clock.Now(), s.loc); err != nil {
		return license, fmt.Errorf("license created but reminder population failed: %w", err)
	}

	return license, nil
}

func (s *LicenseService) GetLicense(ctx context.Context, id, userID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.WithContext(ctx).Preload("Documents").First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if _, err := s.memberRole(ctx, license.BusinessID, userID); err != nil {
		return nil, err
	}

	return &license, nil
}

func (s *LicenseService) ListLicenses(ctx context.Context, businessID, userID uuid.UUID, params utils.PaginationParams) ([]models.License, int64, error) {
	if _, err := s.memberRole(ctx, businessID, userID); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.License{}).Where("business_id = ?", businessID)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("type ILIKE ? OR number ILIKE ? OR issuing_authority ILIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "expiration_date", "type", "number"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

func (s *LicenseService) UpdateLicense(ctx context.Context, id, userID uuid.UUID, req *UpdateLicenseRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var license models.License
	if err := s.db.WithContext(ctx).First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	role, err := s.memberRole(ctx, license.BusinessID, userID)
	if err != nil {
		return nil, err
	}
	if role == models.MembershipRoleViewer {
		return nil, errors.New("viewers cannot edit licenses")
	}

	expirationChanged := false

	if req.Type != nil {
		license.Type = *req.Type
	}
	if req.Number != nil {
		license.Number = *req.Number
	}
	if req.IssuingAuthority != nil {
		license.IssuingAuthority = *req.IssuingAuthority
	}
	if req.IssueDate != nil {
		issueDate, err := parseDate(*req.IssueDate)
		if err != nil {
			return nil, fmt.Errorf("invalid issue_date: %w", err)
		}
		license.IssueDate = issueDate
	}
	if req.ExpirationDate != nil {
		expirationDate, err := parseDate(*req.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration_date: %w", err)
		}
		license.ExpirationDate = expirationDate
		expirationChanged = true
	}
	if req.RenewalURL != nil {
		license.RenewalURL = *req.RenewalURL
	}
	if req.GracePeriodDays != nil {
		license.GracePeriodDays = *req.GracePeriodDays
	}
	if req.Notes != nil {
		license.Notes = *req.Notes
	}

	if license.ExpirationDate.Before(license.IssueDate) {
		return nil, errors.New("expiration date cannot precede issue date")
	}

	if err := s.db.WithContext(ctx).Save(&license).Error; err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}

	// A moved expiration date may open offsets that had no row yet. Rows
	// from the old date are keyed by offset, not calendar day, and are
	// deliberately left as-is.
	if expirationChanged {
		if err := s.reminders.PopulateForLicense(ctx, &license, s.clock.Now(), s.loc); err != nil {
			return &license, fmt.Errorf("license updated but reminder population failed: %w", err)
		}
	}

	return &license, nil
}

func (s *LicenseService) DeleteLicense(ctx context.Context, id, userID uuid.UUID) error {
	var license models.License
	if err := s.db.WithContext(ctx).First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("license not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	role, err := s.memberRole(ctx, license.BusinessID, userID)
	if err != nil {
		return err
	}
	if role == models.MembershipRoleViewer {
		return errors.New("viewers cannot delete licenses")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", id).Delete(&models.ReminderSchedule{}).Error; err != nil {
			return fmt.Errorf("failed to delete reminder schedules: %w", err)
		}
		if err := tx.Where("license_id = ?", id).Delete(&models.LicenseDocument{}).Error; err != nil {
			return fmt.Errorf("failed to delete license documents: %w", err)
		}
		if err := tx.Delete(&license).Error; err != nil {
			return fmt.Errorf("failed to delete license: %w", err)
		}
		return nil
	})
}

// View decorates a license with its derived status and day count.
func (s *LicenseService) View(license models.License, soonThreshold int) LicenseView {
	now := s.clock.Now()
	return LicenseView{
		License:             license,
		Status:              license.StatusAt(now, s.loc, soonThreshold),
		DaysUntilExpiration: license.DaysUntilExpiration(now, s.loc),
	}
}

// FindExpiringInWindow returns licenses whose expiration date falls inside
// [start, end], with the owning business, its subscription, and its
// owner/admin members preloaded so recipients can be resolved without
// further queries.
func (s *LicenseService) FindExpiringInWindow(ctx context.Context, start, end time.Time) ([]models.License, error) {
	var licenses []models.License
	err := s.db.WithContext(ctx).
		Where("expiration_date BETWEEN ? AND ?", start, end).
		Preload("Business").
		Preload("Business.Subscription").
		Preload("Business.Memberships", "role IN ?", []models.MembershipRole{models.MembershipRoleOwner, models.MembershipRoleAdmin}).
		Preload("Business.Memberships.User").
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch licenses expiring in window: %w", err)
	}
	return licenses, nil
}

// FindExpiringInRange is the batched variant covering minDays through
// maxDays ahead of now, used by the weekly digest and the backfill job.
func (s *LicenseService) FindExpiringInRange(ctx context.Context, now time.Time, minDays, maxDays int) ([]models.License, error) {
	start, end := RangeWindow(now, minDays, maxDays, s.loc)
	return s.FindExpiringInWindow(ctx, start, end)
}

func (s *LicenseService) memberRole(ctx context.Context, businessID, userID uuid.UUID) (models.MembershipRole, error) {
	var membership models.BusinessMembership
	if err := s.db.WithContext(ctx).
		Where("business_id = ? AND user_id = ?", businessID, userID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.New("unauthorized: not a member of this business")
		}
		return "", fmt.Errorf("database error: %w", err)
	}
	return membership.Role, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
