// internal/models/subscription.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	BaseModel
	BusinessID           uuid.UUID          `json:"business_id" gorm:"type:uuid;not null;uniqueIndex"`
	Plan                 SubscriptionPlan   `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	Status               SubscriptionStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty" gorm:"size:255;index"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty" gorm:"size:255;index"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`

	// Relationships
	Business Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}
