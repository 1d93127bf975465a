// internal/services/billing_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/subscription"
	"gorm.io/gorm"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// BillingService manages the Stripe subscription that gates the SMS
// reminder channel. Webhook/event processing is deliberately out of scope;
// subscription state is refreshed from Stripe on read instead.
type BillingService struct {
	db         *gorm.DB
	config     *config.Config
	businesses *BusinessService
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

func NewBillingService(db *gorm.DB, config *config.Config, businesses *BusinessService) *BillingService {
	// Initialize Stripe
	stripe.Key = config.Payment.StripeSecretKey

	return &BillingService{
		db:         db,
		config:     config,
		businesses: businesses,
	}
}

// CreateCheckoutSession starts a Stripe checkout for the pro plan, which
// entitles the business to SMS reminders.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, businessID, userID uuid.UUID) (*CheckoutResponse, error) {
	role, err := s.businesses.MemberRole(ctx, businessID, userID)
	if err != nil {
		return nil, err
	}
	if role != models.MembershipRoleOwner {
		return nil, errors.New("only the owner can manage billing")
	}

	if s.config.Payment.StripeSecretKey == "" || s.config.Payment.StripePricePro == "" {
		return nil, errors.New("billing is not configured")
	}

	sub, err := s.localSubscription(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if sub.Plan == models.SubscriptionPlanPro && sub.Status == models.SubscriptionStatusActive {
		return nil, errors.New("business already has an active pro subscription")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.config.Payment.SuccessURL),
		CancelURL:  stripe.String(s.config.Payment.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.config.Payment.StripePricePro),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("business_id", businessID.String())

	checkout, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutResponse{
		CheckoutURL: checkout.URL,
		SessionID:   checkout.ID,
	}, nil
}

// GetSubscription returns the business's subscription, refreshed from
// Stripe when a remote subscription is attached.
func (s *BillingService) GetSubscription(ctx context.Context, businessID, userID uuid.UUID) (*models.Subscription, error) {
	if _, err := s.businesses.MemberRole(ctx, businessID, userID); err != nil {
		return nil, err
	}

	sub, err := s.localSubscription(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID != "" && s.config.Payment.StripeSecretKey != "" {
		if err := s.refreshFromStripe(ctx, sub); err != nil {
			// Stale local state beats an unavailable billing provider
			return sub, nil
		}
	}

	return sub, nil
}

// AttachStripeSubscription links a completed checkout's subscription to the
// business and upgrades the plan.
func (s *BillingService) AttachStripeSubscription(ctx context.Context, businessID, userID uuid.UUID, stripeSubID string) (*models.Subscription, error) {
	role, err := s.businesses.MemberRole(ctx, businessID, userID)
	if err != nil {
		return nil, err
	}
	if role != models.MembershipRoleOwner {
		return nil, errors.New("only the owner can manage billing")
	}

	sub, err := s.localSubscription(ctx, businessID)
	if err != nil {
		return nil, err
	}

	sub.StripeSubscriptionID = stripeSubID
	if err := s.refreshFromStripe(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *BillingService) localSubscription(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("business_id = ?", businessID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("subscription not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sub, nil
}

func (s *BillingService) refreshFromStripe(ctx context.Context, sub *models.Subscription) error {
	remote, err := subscription.Get(sub.StripeSubscriptionID, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch stripe subscription: %w", err)
	}

	switch remote.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		sub.Plan = models.SubscriptionPlanPro
		sub.Status = models.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		sub.Plan = models.SubscriptionPlanPro
		sub.Status = models.SubscriptionStatusPastDue
	default:
		sub.Plan = models.SubscriptionPlanFree
		sub.Status = models.SubscriptionStatusCanceled
	}

	if remote.Customer != nil {
		sub.StripeCustomerID = remote.Customer.ID
	}
	periodEnd := time.Unix(remote.CurrentPeriodEnd, 0)
	sub.CurrentPeriodEnd = &periodEnd

	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}
