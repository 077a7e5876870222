package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"trash_reminder_bot/internal/app"
)

type ReminderScheduler struct {
	cronEngine      *cron.Cron
	reminderService app.ReminderService
	logger          *logrus.Entry
	cronSpecNightly string
	runTimeout      time.Duration
}

func NewReminderScheduler(
	reminderService app.ReminderService,
	logger *logrus.Entry,
	location *time.Location, // Cron expressions are evaluated in the township's timezone
	cronSpecNightly string, // e.g., "0 20 * * 0-4" (20:00 Sunday to Thursday)
	runTimeout time.Duration,
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		reminderService: reminderService,
		logger:          logger,
		cronSpecNightly: cronSpecNightly,
		runTimeout:      runTimeout,
	}
}

// Start registers the nightly job and starts the cron engine.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecNightly, s.RunOnce); err != nil {
		return fmt.Errorf("could not add nightly reminder job %q: %w", s.cronSpecNightly, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecNightly).Info("Reminder scheduler started")
	return nil
}

// RunOnce executes one nightly batch bounded by the run timeout.
func (s *ReminderScheduler) RunOnce() {
	s.logger.Info("Nightly reminder job triggered")
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	run, err := s.reminderService.SendNightlyReminders(ctx, time.Now())
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		s.logger.Info("Nightly reminders are handled by another instance")
	case err != nil:
		s.logger.WithError(err).Error("Nightly reminder run failed")
	default:
		s.logger.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"sent":    run.Sent,
			"failed":  run.Failed,
			"skipped": run.Skipped,
		}).Info("Nightly reminder job completed")
	}
}

// Next reports when the nightly job fires next; zero before Start.
func (s *ReminderScheduler) Next() time.Time {
	entries := s.cronEngine.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
