// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/permitwatch/permitwatch-backend/internal/config"
	"github.com/permitwatch/permitwatch-backend/internal/services"
)

// Scheduler drives the recurring reminder jobs: the daily dispatch run,
// the weekly digest email, and the weekly schedule backfill. Cron specs
// are evaluated in the configured reminder timezone so "9 AM" means 9 AM
// where the operator expects it.
type Scheduler struct {
	cronEngine *cron.Cron
	runner     services.ReminderRunner
	config     *config.Config
}

func New(runner services.ReminderRunner, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(cfg.ReminderLocation())),
		runner:     runner,
		config:     cfg,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.config.Reminder.DailySpec, s.runDaily); err != nil {
		return err
	}
	if _, err := s.cronEngine.AddFunc(s.config.Reminder.DigestSpec, s.runDigest); err != nil {
		return err
	}
	if _, err := s.cronEngine.AddFunc(s.config.Reminder.BackfillSpec, s.runBackfill); err != nil {
		return err
	}

	s.cronEngine.Start()
	logrus.WithFields(logrus.Fields{
		"daily":    s.config.Reminder.DailySpec,
		"digest":   s.config.Reminder.DigestSpec,
		"backfill": s.config.Reminder.BackfillSpec,
		"timezone": s.config.Reminder.Timezone,
	}).Info("Reminder scheduler started")

	return nil
}

// Stop halts scheduling and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	logrus.Info("Reminder scheduler stopped")
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		logrus.WithError(err).Error("Daily reminder run failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"licenses": summary.LicensesProcessed,
		"sent":     summary.NotificationsSent,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
	}).Info("Daily reminder run completed")
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := s.runner.Digest(ctx)
	if err != nil {
		logrus.WithError(err).Error("Weekly digest run failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"businesses": summary.BusinessesNotified,
		"licenses":   summary.LicensesCovered,
	}).Info("Weekly digest run completed")
}

func (s *Scheduler) runBackfill() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := s.runner.Backfill(ctx)
	if err != nil {
		logrus.WithError(err).Error("Schedule backfill failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"licenses": summary.LicensesScanned,
		"ensured":  summary.RowsEnsured,
	}).Info("Schedule backfill completed")
}
