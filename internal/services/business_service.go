// internal/services/business_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/models"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

type BusinessService struct {
	db *gorm.DB
}

type CreateBusinessRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type UpdateBusinessRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type AddMemberRequest struct {
	Email string                `json:"email" validate:"required,email"`
	Role  models.MembershipRole `json:"role" validate:"required,oneof=owner admin viewer"`
}

func NewBusinessService(db *gorm.DB) *BusinessService {
	return &BusinessService{db: db}
}

// CreateBusiness creates a business with the creating user as its owner
// member and a free-tier subscription.
func (s *BusinessService) CreateBusiness(ctx context.Context, userID uuid.UUID, req *CreateBusinessRequest) (*models.Business, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	business := &models.Business{Name: req.Name}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(business).Error; err != nil {
			return fmt.Errorf("failed to create business: %w", err)
		}

		membership := &models.BusinessMembership{
			BusinessID: business.ID,
			UserID:     userID,
			Role:       models.MembershipRoleOwner,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("failed to create owner membership: %w", err)
		}

		subscription := &models.Subscription{
			BusinessID: business.ID,
			Plan:       models.SubscriptionPlanFree,
			Status:     models.SubscriptionStatusActive,
		}
		if err := tx.Create(subscription).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return business, nil
}

func (s *BusinessService) GetBusiness(ctx context.Context, id, userID uuid.UUID) (*models.Business, error) {
	if _, err := s.MemberRole(ctx, id, userID); err != nil {
		return nil, err
	}

	var business models.Business
	if err := s.db.WithContext(ctx).
		Preload("Memberships.User").
		Preload("Subscription").
		First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("business not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &business, nil
}

func (s *BusinessService) ListBusinesses(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Business, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Business{}).
		Where("id IN (SELECT business_id FROM business_memberships WHERE user_id = ? AND deleted_at IS NULL)", userID).
		Preload("Subscription")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count businesses: %w", err)
	}

	allowedSortFields := []string{"created_at", "name"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var businesses []models.Business
	if err := query.Find(&businesses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch businesses: %w", err)
	}

	return businesses, total, nil
}

func (s *BusinessService) UpdateBusiness(ctx context.Context, id, userID uuid.UUID, req *UpdateBusinessRequest) (*models.Business, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	role, err := s.MemberRole(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !role.IsRecipient() {
		return nil, errors.New("only owners and admins can update a business")
	}

	var business models.Business
	if err := s.db.WithContext(ctx).First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("business not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	business.Name = req.Name
	if err := s.db.WithContext(ctx).Save(&business).Error; err != nil {
		return nil, fmt.Errorf("failed to update business: %w", err)
	}

	return &business, nil
}

func (s *BusinessService) DeleteBusiness(ctx context.Context, id, userID uuid.UUID) error {
	role, err := s.MemberRole(ctx, id, userID)
	if err != nil {
		return err
	}
	if role != models.MembershipRoleOwner {
		return errors.New("only the owner can delete a business")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var licenseIDs []uuid.UUID
		if err := tx.Model(&models.License{}).Where("business_id = ?", id).Pluck("id", &licenseIDs).Error; err != nil {
			return fmt.Errorf("failed to list licenses: %w", err)
		}

		if len(licenseIDs) > 0 {
			if err := tx.Where("license_id IN ?", licenseIDs).Delete(&models.ReminderSchedule{}).Error; err != nil {
				return fmt.Errorf("failed to delete reminder schedules: %w", err)
			}
			if err := tx.Where("license_id IN ?", licenseIDs).Delete(&models.LicenseDocument{}).Error; err != nil {
				return fmt.Errorf("failed to delete license documents: %w", err)
			}
			if err := tx.Where("business_id = ?", id).Delete(&models.License{}).Error; err != nil {
				return fmt.Errorf("failed to delete licenses: %w", err)
			}
		}

		if err := tx.Where("business_id = ?", id).Delete(&models.BusinessMembership{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		if err := tx.Where("business_id = ?", id).Delete(&models.Subscription{}).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		if err := tx.Delete(&models.Business{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete business: %w", err)
		}
		return nil
	})
}

func (s *BusinessService) AddMember(ctx context.Context, businessID, userID uuid.UUID, req *AddMemberRequest) (*models.BusinessMembership, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	role, err := s.MemberRole(ctx, businessID, userID)
	if err != nil {
		return nil, err
	}
	if !role.IsRecipient() {
		return nil, errors.New("only owners and admins can add members")
	}

	var member models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no account exists for this email")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BusinessMembership{}).
		Where("business_id = ? AND user_id = ?", businessID, member.ID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, errors.New("user is already a member of this business")
	}

	membership := &models.BusinessMembership{
		BusinessID: businessID,
		UserID:     member.ID,
		Role:       req.Role,
	}
	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	membership.User = member
	return membership, nil
}

func (s *BusinessService) ListMembers(ctx context.Context, businessID, userID uuid.UUID) ([]models.BusinessMembership, error) {
	if _, err := s.MemberRole(ctx, businessID, userID); err != nil {
		return nil, err
	}

	var memberships []models.BusinessMembership
	if err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Preload("User").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	return memberships, nil
}

func (s *BusinessService) RemoveMember(ctx context.Context, businessID, membershipID, userID uuid.UUID) error {
	role, err := s.MemberRole(ctx, businessID, userID)
	if err != nil {
		return err
	}
	if !role.IsRecipient() {
		return errors.New("only owners and admins can remove members")
	}

	var membership models.BusinessMembership
	if err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", membershipID, businessID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("membership not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	if membership.Role == models.MembershipRoleOwner {
		return errors.New("the owner membership cannot be removed")
	}

	if err := s.db.WithContext(ctx).Delete(&membership).Error; err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

// MemberRole resolves the caller's role within a business, erroring for
// non-members.
func (s *BusinessService) MemberRole(ctx context.Context, businessID, userID uuid.UUID) (models.MembershipRole, error) {
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
