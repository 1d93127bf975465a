// internal/services/dispatch_sms.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/models"
	"github.com/permitwatch/permitwatch-backend/internal/utils"
)

type SMSDispatcher struct {
	cfg        config.SMSConfig
	maxRetries int
	client     *http.Client
}

func NewSMSDispatcher(cfg config.SMSConfig, maxRetries int) *SMSDispatcher {
	return &SMSDispatcher{
		cfg:        cfg,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *SMSDispatcher) Channel() models.ReminderChannel {
	return models.ReminderChannelSMS
}

func (d *SMSDispatcher) Send(ctx context.Context, rcpt Recipient, msg Message) DispatchResult {
	if rcpt.Phone == "" {
		return DispatchResult{Error: "recipient has no phone number"}
	}

	to, err := utils.NormalizePhone(rcpt.Phone, d.cfg.DefaultCountryCode)
	if err != nil {
		return DispatchResult{Error: fmt.Sprintf("invalid phone number %q: %v", rcpt.Phone, err)}
	}

	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		// SMS provider not configured, log and treat as delivered
		logrus.WithFields(logrus.Fields{
			"to":   to,
			"body": msg.Text,
		}).Info("SMS provider not configured, simulating SMS delivery")
		return DispatchResult{Delivered: true, Simulated: true}
	}

	result := sendWithRetry(ctx, d.maxRetries, d.cfg.RetryDelay, func() (string, error) {
		return d.post(ctx, to, msg.Text)
	})

	if !result.Delivered {
		logrus.WithFields(logrus.Fields{
			"to":    to,
			"error": result.Error,
		}).Warn("SMS delivery failed after retries")
	}

	return result
}

// post submits one message to the provider's REST API and returns the
// provider message SID.
func (d *SMSDispatcher) post(ctx context.Context, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", d.cfg.APIBaseURL, d.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.SetBasicAuth(d.cfg.AccountSID, d.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("SMS request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("SMS provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Delivery was accepted even if the response body is unexpected
		return "", nil
	}

	return parsed.SID, nil
}
