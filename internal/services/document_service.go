// internal/services/document_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// Presigned download links stay valid long enough to open from an email.
const documentURLExpiration = 15 * time.Minute

// DocumentService manages scanned copies of licenses attached for renewal
// reference. Files live in object storage, metadata in the database.
type DocumentService struct {
	db       *gorm.DB
	storage  *StorageService
	licenses *LicenseService
}

type DocumentView struct {
	models.LicenseDocument
	DownloadURL string `json:"download_url,omitempty"`
}

func NewDocumentService(db *gorm.DB, storage *StorageService, licenses *LicenseService) *DocumentService {
	return &DocumentService{
		db:       db,
		storage:  storage,
		licenses: licenses,
	}
}

func (s *DocumentService) Upload(ctx context.Context, licenseID, userID uuid.UUID, file multipart.File, header *multipart.FileHeader) (*models.LicenseDocument, error) {
	license, err := s.licenses.GetLicense(ctx, licenseID, userID)
	if err != nil {
		return nil, err
	}

	role, err := s.licenses.memberRole(ctx, license.BusinessID, userID)
	if err != nil {
		return nil, err
	}
	if role == models.MembershipRoleViewer {
		return nil, errors.New("viewers cannot upload documents")
	}

	result, err := s.storage.UploadDocument(file, header, licenseID)
	if err != nil {
		return nil, err
	}

	document := &models.LicenseDocument{
		LicenseID:   licenseID,
		FileName:    header.Filename,
		StorageKey:  result.Key,
		ContentType: result.MimeType,
		Size:        result.Size,
		UploadedBy:  userID,
	}

	if err := s.db.WithContext(ctx).Create(document).Error; err != nil {
		// Best effort: don't leave an orphaned object behind
		_ = s.storage.DeleteDocument(result.Key)
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	return document, nil
}

func (s *DocumentService) List(ctx context.Context, licenseID, userID uuid.UUID) ([]DocumentView, error) {
	if _, err := s.licenses.GetLicense(ctx, licenseID, userID); err != nil {
		return nil, err
	}

	var documents []models.LicenseDocument
	if err := s.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Find(&documents).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	views := make([]DocumentView, 0, len(documents))
	for _, doc := range documents {
		view := DocumentView{LicenseDocument: doc}
		if url, err := s.storage.GeneratePresignedURL(doc.StorageKey, documentURLExpiration); err == nil {
			view.DownloadURL = url
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *DocumentService) Delete(ctx context.Context, documentID, userID uuid.UUID) error {
	var document models.LicenseDocument
	if err := s.db.WithContext(ctx).First(&document, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("document not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	license, err := s.licenses.GetLicense(ctx, document.LicenseID, userID)
	if err != nil {
		return err
	}

	role, err := s.licenses.memberRole(ctx, license.BusinessID, userID)
	if err != nil {
		return err
	}
	if role == models.MembershipRoleViewer {
		return errors.New("viewers cannot delete documents")
	}

	if err := s.storage.DeleteDocument(document.StorageKey); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&document).Error; err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	return nil
}
