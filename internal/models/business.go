// internal/models/business.go
package models

import (
	"github.com/google/uuid"
)

type Business struct {
	BaseModel
	Name string `json:"name" gorm:"size:255;not null"`

	// Relationships
	Memberships  []BusinessMembership `json:"memberships,omitempty" gorm:"foreignKey:BusinessID"`
	Licenses     []License            `json:"licenses,omitempty" gorm:"foreignKey:BusinessID"`
	Subscription *Subscription        `json:"subscription,omitempty" gorm:"foreignKey:BusinessID"`
}

type BusinessMembership struct {
	BaseModel
	BusinessID uuid.UUID      `json:"business_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_business_user"`
	UserID     uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_business_user"`
	Role       MembershipRole `json:"role" gorm:"type:varchar(20);not null;default:'viewer'"`

	// Relationships
	Business Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
	User     User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Recipients resolves the notification recipient set: users holding an owner
// or admin membership. Memberships and their Users must be preloaded.
func (b *Business) Recipients() []User {
	var recipients []User
	for _, m := range b.Memberships {
		if m.Role.IsRecipient() {
			recipients = append(recipients, m.User)
		}
	}
	return recipients
}

// SMSEntitled reports whether the business's subscription allows SMS
// reminders. Email reminders are always available; SMS is a paid-tier
// feature.
func (b *Business) SMSEntitled() bool {
	return b.Subscription != nil &&
		b.Subscription.Plan == SubscriptionPlanPro &&
		b.Subscription.Status == SubscriptionStatusActive
}
