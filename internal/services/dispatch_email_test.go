// internal/services/dispatch_email_test.go
package services

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

func emailConfig() config.EmailConfig {
	return config.EmailConfig{
		SMTPHost:   "smtp.example.com",
		SMTPPort:   "587",
		FromEmail:  "reminders@permitwatch.io",
		FromName:   "PermitWatch",
		RetryDelay: time.Millisecond,
	}
}

func TestEmailDispatcherChannel(t *testing.T) {
	d := NewEmailDispatcher(config.EmailConfig{}, 3)
	assert.Equal(t, models.ReminderChannelEmail, d.Channel())
}

func TestEmailDispatcherSimulatesWhenUnconfigured(t *testing.T) {
	d := NewEmailDispatcher(config.EmailConfig{}, 3)
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("transport must not be touched when SMTP is unconfigured")
		return nil
	}

	result := d.Send(context.Background(), Recipient{Email: "owner@example.com"}, Message{Subject: "test"})

	assert.True(t, result.Delivered)
	assert.True(t, result.Simulated)
}

func TestEmailDispatcherRejectsMissingAddress(t *testing.T) {
	d := NewEmailDispatcher(emailConfig(), 3)

	result := d.Send(context.Background(), Recipient{Name: "No Email"}, Message{Subject: "test"})

	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "no email address")
}

func TestEmailDispatcherRetriesExactlyMaxTimes(t *testing.T) {
	d := NewEmailDispatcher(emailConfig(), 3)

	attempts := 0
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		attempts++
		return errors.New("connection refused")
	}

	result := d.Send(context.Background(), Recipient{Email: "owner@example.com"}, Message{Subject: "test"})

	assert.Equal(t, 3, attempts)
	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "connection refused")
}

func TestEmailDispatcherSendsHTMLBody(t *testing.T) {
	d := NewEmailDispatcher(emailConfig(), 1)

	var sentTo []string
	var sentBody []byte
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sentTo = to
		sentBody = msg
		return nil
	}

	result := d.Send(context.Background(), Recipient{Email: "owner@example.com"}, Message{
		Subject:  "Liquor license LL-42 expires in 30 days",
		HTMLBody: "<p>renew soon</p>",
	})

	assert.True(t, result.Delivered)
	assert.False(t, result.Simulated)
	assert.Equal(t, []string{"owner@example.com"}, sentTo)
	assert.Contains(t, string(sentBody), "Subject: Liquor license LL-42 expires in 30 days")
	assert.Contains(t, string(sentBody), "Content-Type: text/html")
	assert.Contains(t, string(sentBody), "<p>renew soon</p>")
}
