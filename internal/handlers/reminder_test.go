// internal/handlers/reminder_test.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/services"
)

type fakeRunner struct {
	runs      int
	backfills int
	digests   int
	err       error
}

func (f *fakeRunner) Run(ctx context.Context) (*services.RunSummary, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &services.RunSummary{LicensesProcessed: 3, NotificationsSent: 5}, nil
}

func (f *fakeRunner) Backfill(ctx context.Context) (*services.BackfillSummary, error) {
	f.backfills++
	if f.err != nil {
		return nil, f.err
	}
	return &services.BackfillSummary{LicensesScanned: 2, RowsEnsured: 8}, nil
}

func (f *fakeRunner) Digest(ctx context.Context) (*services.DigestSummary, error) {
	f.digests++
	if f.err != nil {
		return nil, f.err
	}
	return &services.DigestSummary{BusinessesNotified: 1, LicensesCovered: 4}, nil
}

type CronTriggerTestSuite struct {
	suite.Suite
	router *gin.Engine
	runner *fakeRunner
}

func (suite *CronTriggerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Reminder.CronSecret = "test-cron-secret"

	suite.runner = &fakeRunner{}
	handler := NewReminderHandler(suite.runner, cfg)

	suite.router = gin.New()
	cron := suite.router.Group("/v1/cron")
	cron.Use(handler.CronAuth())
	{
		cron.POST("/reminders", handler.CronRun)
		cron.POST("/backfill", handler.CronBackfill)
		cron.POST("/digest", handler.CronDigest)
	}
}

func (suite *CronTriggerTestSuite) trigger(path, secret string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, nil)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *CronTriggerTestSuite) TestMissingSecretRejected() {
	w := suite.trigger("/v1/cron/reminders", "")

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), 0, suite.runner.runs)
}

func (suite *CronTriggerTestSuite) TestWrongSecretRejected() {
	w := suite.trigger("/v1/cron/reminders", "not-the-secret")

	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), 0, suite.runner.runs)
}

func (suite *CronTriggerTestSuite) TestValidSecretRunsEngine() {
	w := suite.trigger("/v1/cron/reminders", "test-cron-secret")

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), 1, suite.runner.runs)

	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response["success"].(bool))
}

func (suite *CronTriggerTestSuite) TestBackfillAndDigestRoutes() {
	assert.Equal(suite.T(), http.StatusOK, suite.trigger("/v1/cron/backfill", "test-cron-secret").Code)
	assert.Equal(suite.T(), http.StatusOK, suite.trigger("/v1/cron/digest", "test-cron-secret").Code)
	assert.Equal(suite.T(), 1, suite.runner.backfills)
	assert.Equal(suite.T(), 1, suite.runner.digests)
}

func (suite *CronTriggerTestSuite) TestEngineErrorReturns500() {
	suite.runner.err = errors.New("database unavailable")

	w := suite.trigger("/v1/cron/reminders", "test-cron-secret")

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
}

func TestCronTriggerSuite(t *testing.T) {
	suite.Run(t, new(CronTriggerTestSuite))
}

func TestCronAuthRejectsWhenSecretUnset(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	handler := NewReminderHandler(&fakeRunner{}, cfg)

	router := gin.New()
	router.POST("/cron/reminders", handler.CronAuth(), handler.CronRun)

	req, _ := http.NewRequest("POST", "/cron/reminders", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// An unset secret must fail closed
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
