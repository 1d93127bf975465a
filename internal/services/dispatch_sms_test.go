// internal/services/dispatch_sms_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/models"
)

func smsConfig(baseURL string) config.SMSConfig {
	return config.SMSConfig{
		AccountSID:         "AC123",
		AuthToken:          "secret",
		FromNumber:         "+15550001111",
		APIBaseURL:         baseURL,
		DefaultCountryCode: "1",
		RetryDelay:         time.Millisecond,
	}
}

func TestSMSDispatcherChannel(t *testing.T) {
	d := NewSMSDispatcher(config.SMSConfig{}, 3)
	assert.Equal(t, models.ReminderChannelSMS, d.Channel())
}

func TestSMSDispatcherSimulatesWhenUnconfigured(t *testing.T) {
	d := NewSMSDispatcher(config.SMSConfig{DefaultCountryCode: "1"}, 3)

	result := d.Send(context.Background(), Recipient{Phone: "+15551234567"}, Message{Text: "test"})

	assert.True(t, result.Delivered)
	assert.True(t, result.Simulated)
}

func TestSMSDispatcherRejectsMissingPhone(t *testing.T) {
	d := NewSMSDispatcher(config.SMSConfig{}, 3)

	result := d.Send(context.Background(), Recipient{Name: "No Phone"}, Message{Text: "test"})

	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "no phone number")
}

func TestSMSDispatcherRejectsInvalidPhone(t *testing.T) {
	d := NewSMSDispatcher(smsConfig("http://unused"), 3)

	result := d.Send(context.Background(), Recipient{Phone: "12345"}, Message{Text: "test"})

	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "invalid phone number")
}

func TestSMSDispatcherPostsToProvider(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM987"}`))
	}))
	defer server.Close()

	d := NewSMSDispatcher(smsConfig(server.URL), 3)

	result := d.Send(context.Background(), Recipient{Phone: "5551234567"}, Message{Text: "expires in 7 days"})

	assert.True(t, result.Delivered)
	assert.False(t, result.Simulated)
	assert.Equal(t, "SM987", result.ProviderID)
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15550001111", gotFrom)
	assert.Equal(t, "expires in 7 days", gotBody)
}

func TestSMSDispatcherRetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewSMSDispatcher(smsConfig(server.URL), 3)

	result := d.Send(context.Background(), Recipient{Phone: "+15551234567"}, Message{Text: "test"})

	assert.Equal(t, 3, attempts)
	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "503")
}

func TestSMSDispatcherRecoversAfterTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"sid":"SM001"}`))
	}))
	defer server.Close()

	d := NewSMSDispatcher(smsConfig(server.URL), 3)

	result := d.Send(context.Background(), Recipient{Phone: "+15551234567"}, Message{Text: "test"})

	assert.Equal(t, 2, attempts)
	assert.True(t, result.Delivered)
	assert.Equal(t, "SM001", result.ProviderID)
}
