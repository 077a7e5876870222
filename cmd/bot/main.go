package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"trash_reminder_bot/internal/app"
	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/infra/config"
	idb "trash_reminder_bot/internal/infra/database"
	"trash_reminder_bot/internal/infra/holidaysource"
	"trash_reminder_bot/internal/infra/lock"
	"trash_reminder_bot/internal/infra/logger"
	"trash_reminder_bot/internal/infra/scheduler"
	"trash_reminder_bot/internal/infra/telegram"
	"trash_reminder_bot/internal/infra/whatsapp"
)

func main() {
	os.Exit(run())
}

// run wires the application and blocks until shutdown. It returns the process
// exit code so deferred cleanup runs before main exits.
func run() int {
	once := flag.Bool("once", false, "send tonight's reminders once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("Could not load application configuration: %v", err)
		return 1
	}
	logger.Init(cfg)
	mainLogger := logger.For("main")

	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone,
		"telegram":    cfg.TelegramEnabled(),
		"run_lock":    cfg.RunLockEnabled(),
	}).Info("Trash reminder bot starting...")
	for _, tableErr := range cfg.Schedule.TableErrors {
		mainLogger.WithError(tableErr).Error("Ignoring malformed schedule table")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.Errorf("Could not connect to database: %v", err)
		return 1
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.Errorf("Could not prepare database schema: %v", err)
		return 1
	}
	mainLogger.Info("Database connection established successfully.")

	subscriberRepo := idb.NewPostgresSubscriberRepository(db)
	deliveryRepo := idb.NewPostgresDeliveryRepository(db)

	resolver, err := cfg.NewResolver()
	if err != nil {
		mainLogger.Errorf("Could not build schedule resolver: %v", err)
		return 1
	}

	sender := whatsapp.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppFrom, whatsapp.Templates{
		notification.TemplateBasic:   cfg.Twilio.BasicTemplateSID,
		notification.TemplateHoliday: cfg.Twilio.HolidayTemplateSID,
	}, logger.For("whatsapp"))

	reminderService := app.NewReminderServiceImpl(resolver, subscriberRepo, deliveryRepo, sender, cfg.Schedule.Location, logger.For("reminders"))

	var holidaySource app.HolidaySource
	if cfg.HolidaySourceFile != "" {
		holidaySource = holidaysource.NewFileSource(cfg.HolidaySourceFile)
		reminderService.WithHolidaySource(holidaySource)
	}

	if cfg.RunLockEnabled() {
		runLock, err := lock.NewRedisRunLock(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LockTTL)
		if err != nil {
			mainLogger.Errorf("Could not connect to redis: %v", err)
			return 1
		}
		defer runLock.Close()
		reminderService.WithRunLocker(runLock)
		mainLogger.Info("Redis run lock enabled.")
	}

	var bot *telebot.Bot
	if cfg.TelegramEnabled() {
		bot, err = newBot(cfg.TelegramToken, logger.For("telebot"))
		if err != nil {
			mainLogger.Errorf("Could not create Telegram bot: %v", err)
			return 1
		}
		reminderService.WithOperatorChat(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
	}

	if *once {
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
		finished, err := reminderService.SendNightlyReminders(runCtx, time.Now())
		if err != nil && !errors.Is(err, app.ErrRunInProgress) {
			mainLogger.WithError(err).Error("Reminder run failed")
			return 1
		}
		if finished != nil {
			mainLogger.WithFields(logrus.Fields{"sent": finished.Sent, "failed": finished.Failed, "skipped": finished.Skipped}).Info("Reminder run done")
		}
		return 0
	}

	reminderScheduler := scheduler.NewReminderScheduler(reminderService, logger.For("scheduler"), cfg.Schedule.Location, cfg.CronSpecNightly, cfg.RunTimeout)
	if err := reminderScheduler.Start(); err != nil {
		mainLogger.Errorf("Could not start scheduler: %v", err)
		return 1
	}
	mainLogger.WithField("next_run", reminderScheduler.Next()).Info("Nightly reminders scheduled")

	if bot != nil {
		adminService := app.NewAdminService(subscriberRepo, deliveryRepo, sender, resolver, holidaySource, reminderService, cfg.AdminTelegramID, cfg.Schedule.Location, logger.For("admin"))
		telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, logger.For("telegram"))
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.For("telegram"))
		mainLogger.Info("Operator bot handlers registered.")

		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	mainLogger.Info("Application setup complete.")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	reminderScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
	return 0
}

func newBot(token string, log *logrus.Entry) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler failed")
		},
	})
}
