// internal/models/document.go
package models

import (
	"github.com/google/uuid"
)

type LicenseDocument struct {
	BaseModel
	LicenseID   uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	StorageKey  string    `json:"storage_key" gorm:"size:512;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	Size        int64     `json:"size"`
	UploadedBy  uuid.UUID `json:"uploaded_by" gorm:"type:uuid;not null"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
