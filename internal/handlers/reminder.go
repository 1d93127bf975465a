// internal/handlers/reminder.go
package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/services"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

// ReminderHandler exposes the reminder engine over HTTP: shared-secret
// endpoints for an external cron, and an authenticated manual trigger.
type ReminderHandler struct {
	runner services.ReminderRunner
	config *config.Config
}

func NewReminderHandler(runner services.ReminderRunner, cfg *config.Config) *ReminderHandler {
	return &ReminderHandler{
		runner: runner,
		config: cfg,
	}
}

// CronAuth gates the /cron endpoints on a shared secret presented as
// "Authorization: Bearer <secret>". The comparison is constant time, and
// an unset secret rejects everything rather than allowing everything.
func (h *ReminderHandler) CronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := h.config.Reminder.CronSecret
		if secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Cron trigger is not configured"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" ||
			subtle.ConstantTimeCompare([]byte(parts[1]), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron secret"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// POST /cron/reminders
func (h *ReminderHandler) CronRun(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Cron-triggered reminder run failed")
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"summary": summary})
}

// POST /cron/backfill
func (h *ReminderHandler) CronBackfill(c *gin.Context) {
	summary, err := h.runner.Backfill(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Cron-triggered backfill failed")
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"summary": summary})
}

// POST /cron/digest
func (h *ReminderHandler) CronDigest(c *gin.Context) {
	summary, err := h.runner.Digest(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Cron-triggered digest failed")
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"summary": summary})
}

// POST /reminders/run
//
// Authenticated manual trigger, useful after a bulk import when the next
// scheduled run is hours away. Runs the same engine as the cron path.
func (h *ReminderHandler) ManualRun(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summary, err := h.runner.Run(c.Request.Context())
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Manual reminder run failed")
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"licenses": summary.LicensesProcessed,
		"sent":     summary.NotificationsSent,
	}).Info("Manual reminder run completed")

	utils.SuccessResponse(c, gin.H{"summary": summary})
}
