// internal/services/dispatch_email.go
package services

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

// smtpSendFunc matches smtp.SendMail so tests can swap the transport.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailDispatcher struct {
	cfg        config.EmailConfig
	maxRetries int
	send       smtpSendFunc
}

func NewEmailDispatcher(cfg config.EmailConfig, maxRetries int) *EmailDispatcher {
	return &EmailDispatcher{
		cfg:        cfg,
		maxRetries: maxRetries,
		send:       smtp.SendMail,
	}
}

func (d *EmailDispatcher) Channel() models.ReminderChannel {
	return models.ReminderChannelEmail
}

func (d *EmailDispatcher) Send(ctx context.Context, rcpt Recipient, msg Message) DispatchResult {
	if rcpt.Email == "" {
		return DispatchResult{Error: "recipient has no email address"}
	}

	if d.cfg.SMTPHost == "" {
		// Email not configured, log and treat as delivered
		logrus.WithFields(logrus.Fields{
			"to":      rcpt.Email,
			"subject": msg.Subject,
		}).Info("SMTP not configured, simulating email delivery")
		return DispatchResult{Delivered: true, Simulated: true}
	}

	auth := smtp.PlainAuth("", d.cfg.SMTPUsername, d.cfg.SMTPPassword, d.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%s", d.cfg.SMTPHost, d.cfg.SMTPPort)
	body := []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		d.cfg.FromName, d.cfg.FromEmail, rcpt.Email, msg.Subject, msg.HTMLBody))

	result := sendWithRetry(ctx, d.maxRetries, d.cfg.RetryDelay, func() (string, error) {
		if err := d.send(addr, auth, d.cfg.FromEmail, []string{rcpt.Email}, body); err != nil {
			return "", fmt.Errorf("smtp send failed: %w", err)
		}
		return "", nil
	})

	if !result.Delivered {
		logrus.WithFields(logrus.Fields{
			"to":    rcpt.Email,
			"error": result.Error,
		}).Warn("Email delivery failed after retries")
	}

	return result
}
