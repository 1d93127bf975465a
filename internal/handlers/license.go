// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/services"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService  *services.LicenseService
	reminderService *services.ReminderService
	config          *config.Config
}

func NewLicenseHandler(licenseService *services.LicenseService, reminderService *services.ReminderService, cfg *config.Config) *LicenseHandler {
	return &LicenseHandler{
		licenseService:  licenseService,
		reminderService: reminderService,
		config:          cfg,
	}
}

// POST /licenses
func (h *LicenseHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	license, err := h.licenseService.CreateLicense(c.Request.Context(), userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"license": h.licenseService.View(*license, h.config.Reminder.SoonThreshold),
	})
}

// GET /licenses/:id
func (h *LicenseHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	license, err := h.licenseService.GetLicense(c.Request.Context(), licenseID, userID)
	if err != nil {
		utils.NotFoundResponse(c, "License")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license": h.licenseService.View(*license, h.config.Reminder.SoonThreshold),
	})
}

// GET /businesses/:id/licenses
func (h *LicenseHandler) ListForBusiness(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	licenses, total, err := h.licenseService.ListLicenses(c.Request.Context(), businessID, userID, params)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	views := make([]services.LicenseView, 0, len(licenses))
	for _, license := range licenses {
		views = append(views, h.licenseService.View(license, h.config.Reminder.SoonThreshold))
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(views, total, params))
}

// PUT /licenses/:id
func (h *LicenseHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenseService.UpdateLicense(c.Request.Context(), licenseID, userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license": h.licenseService.View(*license, h.config.Reminder.SoonThreshold),
	})
}

// DELETE /licenses/:id
func (h *LicenseHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.licenseService.DeleteLicense(c.Request.Context(), licenseID, userID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "License deleted"})
}

// GET /licenses/:id/reminders
func (h *LicenseHandler) ListReminders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Membership check rides on the license lookup
	if _, err := h.licenseService.GetLicense(c.Request.Context(), licenseID, userID); err != nil {
		utils.NotFoundResponse(c, "License")
		return
	}

	schedules, err := h.reminderService.GetForLicense(c.Request.Context(), licenseID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"reminders": schedules})
}
