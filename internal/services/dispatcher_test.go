// internal/services/dispatcher_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendWithRetryStopsAtBound(t *testing.T) {
	attempts := 0
	result := sendWithRetry(context.Background(), 3, time.Millisecond, func() (string, error) {
		attempts++
		return "", errors.New("provider unavailable")
	})

	assert.Equal(t, 3, attempts)
	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "provider unavailable")
}

func TestSendWithRetrySucceedsMidway(t *testing.T) {
	attempts := 0
	result := sendWithRetry(context.Background(), 3, time.Millisecond, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "msg-123", nil
	})

	assert.Equal(t, 2, attempts)
	assert.True(t, result.Delivered)
	assert.Equal(t, "msg-123", result.ProviderID)
	assert.Empty(t, result.Error)
}

func TestSendWithRetryFirstAttemptSuccess(t *testing.T) {
	attempts := 0
	result := sendWithRetry(context.Background(), 3, time.Hour, func() (string, error) {
		attempts++
		return "", nil
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, result.Delivered)
}

func TestSendWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan DispatchResult, 1)
	go func() {
		done <- sendWithRetry(ctx, 3, time.Hour, func() (string, error) {
			attempts++
			return "", errors.New("down")
		})
	}()

	cancel()

	select {
	case result := <-done:
		assert.Equal(t, 1, attempts)
		assert.False(t, result.Delivered)
		assert.Contains(t, result.Error, "context canceled")
	case <-time.After(5 * time.Second):
		t.Fatal("sendWithRetry did not return after cancellation")
	}
}

func TestSendWithRetryClampsInvalidBound(t *testing.T) {
	attempts := 0
	sendWithRetry(context.Background(), 0, time.Millisecond, func() (string, error) {
		attempts++
		return "", errors.New("nope")
	})

	assert.Equal(t, 1, attempts)
}
