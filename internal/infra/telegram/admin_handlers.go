package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"trash_reminder_bot/internal/app"
	"trash_reminder_bot/internal/domain/schedule"
	idb "trash_reminder_bot/internal/infra/database"
)

const notAuthorizedMsg = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers handlers for operator commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	guard := newGuard(adminTelegramID, baseLogger)

	b.Handle("/subscribe", guard("/subscribe", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		req, err := parseSubscribeArgs(c.Args())
		if err != nil {
			handlerLogger.WithField("args_count", len(c.Args())).Warn("Invalid command format")
			return c.Send(err.Error())
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"phone": req.Phone, "zone": req.Zone})

		sub, created, err := adminService.Subscribe(ctx, c.Sender().ID, req)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(notAuthorizedMsg)
			case errors.Is(err, app.ErrInvalidSubscriber):
				logWithError.Warn("Rejected subscriber")
				return c.Send(fmt.Sprintf("Error: %s\n%s", err.Error(), subscribeUsage))
			default:
				logWithError.Error("Failed to subscribe")
				return c.Send(fmt.Sprintf("Could not save the subscriber: %s", err.Error()))
			}
		}

		handlerLogger.WithFields(logrus.Fields{"subscriber_id": sub.ID, "created": created}).Info("Subscriber saved")
		return c.Send(formatSubscribed(sub, created))
	}))

	b.Handle("/unsubscribe", guard("/unsubscribe", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /unsubscribe <+phone>")
		}
		handlerLogger = handlerLogger.WithField("phone", args[0])

		if err := adminService.Unsubscribe(ctx, c.Sender().ID, args[0]); err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(notAuthorizedMsg)
			case errors.Is(err, idb.ErrSubscriberNotFound):
				logWithError.Warn("Subscriber to remove not found")
				return c.Send(fmt.Sprintf("No subscriber with phone %s.", args[0]))
			default:
				logWithError.Error("Failed to unsubscribe")
				return c.Send(fmt.Sprintf("Could not remove the subscriber: %s", err.Error()))
			}
		}

		handlerLogger.Info("Subscriber removed")
		return c.Send(fmt.Sprintf("Unsubscribed %s.", args[0]))
	}))

	b.Handle("/subscribers", guard("/subscribers", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		subs, err := adminService.ListSubscribers(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list subscribers")
			return c.Send(fmt.Sprintf("Could not list subscribers: %s", err.Error()))
		}
		handlerLogger.WithField("subscribers_count", len(subs)).Info("Listed subscribers")
		return c.Send(formatSubscribers(subs))
	}))

	b.Handle("/preview", guard("/preview", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		zone, regular, date, err := parsePreviewArgs(c.Args(), adminService.Today())
		if err != nil {
			return c.Send(err.Error())
		}

		p, err := adminService.Preview(ctx, c.Sender().ID, zone, regular, date)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to build preview")
			return c.Send(fmt.Sprintf("Could not build the preview: %s", err.Error()))
		}
		return c.Send(formatPreview(p))
	}))

	b.Handle("/holidays", guard("/holidays", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		year, err := parseYearArg(c.Args(), adminService.Today())
		if err != nil {
			return c.Send(err.Error())
		}

		holidays, err := adminService.Holidays(c.Sender().ID, year)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to compute holidays")
			return c.Send(fmt.Sprintf("Could not compute holidays for %d: %s", year, err.Error()))
		}
		return c.Send(formatHolidays(year, holidays))
	}))

	b.Handle("/send_now", guard("/send_now", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		if err := c.Send("Sending tonight's reminders..."); err != nil {
			return err
		}

		run, err := adminService.SendNow(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrRunInProgress) {
				return c.Send("A run for this pickup date is already in progress.")
			}
			if run == nil {
				handlerLogger.WithError(err).Error("Manual run failed")
				return c.Send(fmt.Sprintf("The run failed: %s", err.Error()))
			}
			handlerLogger.WithError(err).Warn("Manual run stopped early")
		}
		handlerLogger.WithField("run_id", run.ID).Info("Manual run finished")
		return c.Send(formatRun(run))
	}))

	b.Handle("/last_run", guard("/last_run", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		id, pickupDate, err := parseRunArg(c.Args(), adminService.NextPickupDate())
		if err != nil {
			return c.Send(err.Error())
		}

		var report *app.RunReport
		if id != uuid.Nil {
			handlerLogger = handlerLogger.WithField("run_id", id)
			report, err = adminService.RunByID(ctx, c.Sender().ID, id)
		} else {
			handlerLogger = handlerLogger.WithField("pickup_date", pickupDate.Format(schedule.DateLayout))
			report, err = adminService.LastRun(ctx, c.Sender().ID, pickupDate)
		}
		if err != nil {
			if errors.Is(err, idb.ErrRunNotFound) {
				return c.Send("No reminder run found.")
			}
			handlerLogger.WithError(err).Error("Failed to load run")
			return c.Send(fmt.Sprintf("Could not load the run: %s", err.Error()))
		}
		handlerLogger.WithField("deliveries_count", len(report.Deliveries)).Info("Run reported")
		return c.Send(formatRunReport(report))
	}))

	b.Handle("/test_message", guard("/test_message", func(c telebot.Context, handlerLogger *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /test_message <+phone>")
		}
		handlerLogger = handlerLogger.WithField("phone", args[0])

		messageID, err := adminService.TestMessage(ctx, c.Sender().ID, args[0])
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrInvalidSubscriber) {
				logWithError.Warn("Rejected test message recipient")
				return c.Send(fmt.Sprintf("Error: %s", err.Error()))
			}
			logWithError.Error("Test message failed")
			return c.Send(fmt.Sprintf("Could not send the test message: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Test message sent to %s (id %s).", args[0], messageID))
	}))
}

type guardFunc func(command string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc

// newGuard returns a wrapper that logs the command and rejects everyone but the
// operator. Updates without a sender are dropped.
func newGuard(adminTelegramID int64, baseLogger *logrus.Entry) guardFunc {
	return func(command string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": senderID(c),
			})
			handlerLogger.Info("Command received")

			if c.Sender() == nil {
				handlerLogger.Warn("Ignoring command without a sender")
				return nil
			}
			if !isOperator(c, adminTelegramID) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(notAuthorizedMsg)
			}
			return next(c, handlerLogger)
		}
	}
}

// senderID is 0 for updates without a sender, such as channel posts.
func senderID(c telebot.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func isOperator(c telebot.Context, adminTelegramID int64) bool {
	u := c.Sender()
	return u != nil && u.ID == adminTelegramID
}

// zoneNames lists the zones for help text.
func zoneNames() string {
	return fmt.Sprintf("%s, %s, %s, %s", schedule.Zone1, schedule.Zone2, schedule.Zone3, schedule.Zone4)
}
