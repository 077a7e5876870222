// internal/app/reminder_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/domain/schedule"
	"trash_reminder_bot/internal/domain/subscriber"
	domainTelegram "trash_reminder_bot/internal/domain/telegram"
	idb "trash_reminder_bot/internal/infra/database"
)

var ErrRunInProgress = fmt.Errorf("a reminder run for this pickup date is already in progress")

// ReminderService sends the evening-before pickup reminders.
type ReminderService interface {
	// SendNightlyReminders reminds every consenting subscriber whose pickup is
	// the day after now (in the service timezone). Per-recipient failures are
	// counted in the returned Run; only setup failures return an error.
	SendNightlyReminders(ctx context.Context, now time.Time) (*notification.Run, error)
}

// RunLocker guards a nightly run across replicas.
type RunLocker interface {
	TryAcquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error)
}

// HolidaySource supplies externally published holiday notes.
type HolidaySource interface {
	Load(ctx context.Context) (schedule.Overrides, error)
}

// ReminderServiceImpl implements the ReminderService interface.
type ReminderServiceImpl struct {
	resolver       *schedule.Resolver
	subscriberRepo subscriber.Repository
	notifRepo      notification.Repository
	sender         notification.Sender
	location       *time.Location
	logger         *logrus.Entry

	// Optional collaborators, nil when not configured.
	locker        RunLocker
	holidaySource HolidaySource
	notifier      domainTelegram.Notifier
	adminChatID   int64
}

func NewReminderServiceImpl(
	resolver *schedule.Resolver,
	sr subscriber.Repository,
	nr notification.Repository,
	sender notification.Sender,
	location *time.Location,
	logger *logrus.Entry,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		resolver:       resolver,
		subscriberRepo: sr,
		notifRepo:      nr,
		sender:         sender,
		location:       location,
		logger:         logger,
	}
}

func (s *ReminderServiceImpl) WithRunLocker(l RunLocker) *ReminderServiceImpl {
	s.locker = l
	return s
}

func (s *ReminderServiceImpl) WithHolidaySource(src HolidaySource) *ReminderServiceImpl {
	s.holidaySource = src
	return s
}

// WithOperatorChat posts a summary of every run to chatID.
func (s *ReminderServiceImpl) WithOperatorChat(n domainTelegram.Notifier, chatID int64) *ReminderServiceImpl {
	s.notifier = n
	s.adminChatID = chatID
	return s
}

// PickupDateFor is the civil date of the day after now in loc.
func PickupDateFor(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, time.UTC)
}

func (s *ReminderServiceImpl) SendNightlyReminders(ctx context.Context, now time.Time) (*notification.Run, error) {
	pickupDate := PickupDateFor(now, s.location)
	logCtx := s.logger.WithField("pickup_date", pickupDate.Format(schedule.DateLayout))

	if s.locker != nil {
		release, ok, err := s.locker.TryAcquire(ctx, pickupDate.Format(schedule.DateLayout))
		if err != nil {
			return nil, err
		}
		if !ok {
			logCtx.Info("Another replica holds the run lock. Skipping.")
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logCtx.WithError(err).Warn("Failed to release run lock")
			}
		}()
	}

	resolver := effectiveResolver(ctx, s.resolver, s.holidaySource, logCtx)

	subscribers, err := s.subscriberRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}

	run := &notification.Run{PickupDate: pickupDate, StartedAt: now}
	if err := s.notifRepo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create reminder run: %w", err)
	}
	logCtx = logCtx.WithField("run_id", run.ID)
	logCtx.WithField("subscribers", len(subscribers)).Info("Reminder run started")

	var runErr error
	for _, sub := range subscribers {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("reminder run interrupted: %w", err)
			break
		}
		s.remind(ctx, resolver, run, sub, logCtx)
	}

	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.notifRepo.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logCtx.WithError(err).Error("Failed to persist run totals")
	}

	logCtx.WithFields(logrus.Fields{
		"sent":    run.Sent,
		"failed":  run.Failed,
		"skipped": run.Skipped,
	}).Info("Reminder run finished")
	s.postSummary(run, runErr, logCtx)

	return run, runErr
}

// remind handles one subscriber. Subscribers whose pickup is not tomorrow are
// not part of the run and leave the counters untouched.
func (s *ReminderServiceImpl) remind(ctx context.Context, resolver *schedule.Resolver, run *notification.Run, sub *subscriber.Subscriber, baseLogger *logrus.Entry) {
	logCtx := baseLogger.WithFields(logrus.Fields{
		"phone": sub.Phone,
		"zone":  sub.Zone,
	})

	if !sub.Zone.Valid() {
		logCtx.Warn("Subscriber has no valid zone. Skipping.")
		run.Skipped++
		return
	}
	if resolver.PickupDay(sub.Zone, sub.CollectionDay, run.PickupDate) != run.PickupDate.Weekday() {
		return
	}
	if !sub.Consent {
		logCtx.Debug("Subscriber has not consented. Skipping.")
		run.Skipped++
		return
	}

	delivered, err := s.notifRepo.HasDelivered(ctx, sub.Phone, run.PickupDate)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check delivery ledger")
		run.Failed++
		return
	}
	if delivered {
		logCtx.Debug("Reminder already delivered. Skipping.")
		run.Skipped++
		return
	}

	kind, vars := notification.Compose(resolver.Resolve(sub.Zone, run.PickupDate))
	delivery := &notification.Delivery{
		RunID:      run.ID,
		Phone:      sub.Phone,
		PickupDate: run.PickupDate,
		Kind:       kind,
	}

	messageID, err := s.sender.Send(ctx, sub.Phone, kind, vars)
	if err != nil {
		logCtx.WithError(err).Error("Failed to send reminder")
		run.Failed++
		delivery.Status = notification.DeliveryFailed
		delivery.Error = sql.NullString{String: err.Error(), Valid: true}
	} else {
		logCtx.WithFields(logrus.Fields{"kind": kind, "message_id": messageID}).Info("Reminder sent")
		run.Sent++
		delivery.Status = notification.DeliverySent
		delivery.MessageID = sql.NullString{String: messageID, Valid: true}
	}

	if err := s.notifRepo.RecordDelivery(context.WithoutCancel(ctx), delivery); err != nil {
		if err == idb.ErrDuplicateDelivery {
			logCtx.Warn("Delivery was already recorded by a concurrent run")
			return
		}
		logCtx.WithError(err).Error("Failed to record delivery")
	}
}

func (s *ReminderServiceImpl) postSummary(run *notification.Run, runErr error, logCtx *logrus.Entry) {
	if s.notifier == nil || s.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf("Reminders for %s %s: %d sent, %d failed, %d skipped.",
		run.PickupDate.Weekday(), run.PickupDate.Format(schedule.DateLayout), run.Sent, run.Failed, run.Skipped)
	if runErr != nil {
		text += "\nRun stopped early: " + runErr.Error()
	}
	if err := s.notifier.Notify(s.adminChatID, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		logCtx.WithError(err).Warn("Failed to post run summary to operator chat")
	}
}

// effectiveResolver layers the holiday source under the configured overrides.
// A failing source is reported and ignored.
func effectiveResolver(ctx context.Context, base *schedule.Resolver, src HolidaySource, logCtx *logrus.Entry) *schedule.Resolver {
	if src == nil {
		return base
	}
	notes, err := src.Load(ctx)
	if err != nil {
		logCtx.WithError(err).Warn("Holiday source unavailable, using configured rules only")
		return base
	}
	return base.WithSourceOverrides(notes)
}
