// internal/handlers/business.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/permitwatch/permitwatch-backend/internal/services"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

type BusinessHandler struct {
	businessService *services.BusinessService
	billingService  *services.BillingService
}

func NewBusinessHandler(businessService *services.BusinessService, billingService *services.BillingService) *BusinessHandler {
	return &BusinessHandler{
		businessService: businessService,
		billingService:  billingService,
	}
}

// POST /businesses
func (h *BusinessHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	business, err := h.businessService.CreateBusiness(c.Request.Context(), userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"business": business})
}

// GET /businesses
func (h *BusinessHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	businesses, total, err := h.businessService.ListBusinesses(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(businesses, total, params))
}

// GET /businesses/:id
func (h *BusinessHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	business, err := h.businessService.GetBusiness(c.Request.Context(), businessID, userID)
	if err != nil {
		utils.NotFoundResponse(c, "Business")
		return
	}

	utils.SuccessResponse(c, gin.H{"business": business})
}

// PUT /businesses/:id
func (h *BusinessHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	business, err := h.businessService.UpdateBusiness(c.Request.Context(), businessID, userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"business": business})
}

// DELETE /businesses/:id
func (h *BusinessHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.businessService.DeleteBusiness(c.Request.Context(), businessID, userID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Business deleted"})
}

// POST /businesses/:id/members
func (h *BusinessHandler) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	membership, err := h.businessService.AddMember(c.Request.Context(), businessID, userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"member": membership})
}

// GET /businesses/:id/members
func (h *BusinessHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	members, err := h.businessService.ListMembers(c.Request.Context(), businessID, userID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"members": members})
}

// DELETE /businesses/:id/members/:memberId
func (h *BusinessHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	membershipID, ok := parseIDParam(c, "memberId")
	if !ok {
		return
	}

	if err := h.businessService.RemoveMember(c.Request.Context(), businessID, membershipID, userID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Member removed"})
}

// POST /businesses/:id/billing/checkout
func (h *BusinessHandler) CreateCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	checkout, err := h.billingService.CreateCheckoutSession(c.Request.Context(), businessID, userID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"checkout": checkout})
}

// GET /businesses/:id/billing/subscription
func (h *BusinessHandler) GetSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.billingService.GetSubscription(c.Request.Context(), businessID, userID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"subscription": sub})
}

// POST /businesses/:id/billing/attach
func (h *BusinessHandler) AttachSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		StripeSubscriptionID string `json:"stripe_subscription_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	sub, err := h.billingService.AttachStripeSubscription(c.Request.Context(), businessID, userID, req.StripeSubscriptionID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"subscription": sub})
}
