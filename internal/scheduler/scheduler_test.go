// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/services"
)

type nopRunner struct{}

func (nopRunner) Run(ctx context.Context) (*services.RunSummary, error) {
	return &services.RunSummary{}, nil
}

func (nopRunner) Backfill(ctx context.Context) (*services.BackfillSummary, error) {
	return &services.BackfillSummary{}, nil
}

func (nopRunner) Digest(ctx context.Context) (*services.DigestSummary, error) {
	return &services.DigestSummary{}, nil
}

func testConfig(daily, digest, backfill string) *config.Config {
	cfg := &config.Config{}
	cfg.Reminder.Timezone = "UTC"
	cfg.Reminder.DailySpec = daily
	cfg.Reminder.DigestSpec = digest
	cfg.Reminder.BackfillSpec = backfill
	return cfg
}

func TestSchedulerStartAndStop(t *testing.T) {
	sched := New(nopRunner{}, testConfig("0 9 * * *", "0 8 * * 1", "30 8 * * 0"))

	require.NoError(t, sched.Start())
	sched.Stop()
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	sched := New(nopRunner{}, testConfig("not a cron spec", "0 8 * * 1", "30 8 * * 0"))

	assert.Error(t, sched.Start())
}
