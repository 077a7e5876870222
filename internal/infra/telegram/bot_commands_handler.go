// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID(c))
		logCtx.Info("Processing /start command")

		if isOperator(c, adminTelegramID) {
			logCtx.Info("User identified as Admin")
			return c.Send("Hello, " + c.Sender().FirstName + ". The reminder bot is running. Use /help for the list of commands.")
		}

		logCtx.Info("User is unknown")
		return c.Send("This bot is operated by the township. Residents receive pickup reminders on WhatsApp; contact the township office to sign up.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID(c))
		logCtx.Info("Processing /help command")

		if !isOperator(c, adminTelegramID) {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("No commands are available to you.")
		}
		return c.Send(adminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("`/subscribe <+phone> <zone> <day> <address>`\n - Enrol or update a household. Zones: " + zoneNames() + ".\n\n")
	helpText.WriteString("`/unsubscribe <+phone>`\n - Stop reminders for a household.\n\n")
	helpText.WriteString("`/subscribers`\n - List enrolled households.\n\n")
	helpText.WriteString("`/preview <zone> [day] [YYYY-MM-DD]`\n - Show the reminder a zone gets for a week. Defaults to this week.\n\n")
	helpText.WriteString("`/holidays [year]`\n - List the holidays that shift pickups.\n\n")
	helpText.WriteString("`/send_now`\n - Send tonight's reminders immediately.\n\n")
	helpText.WriteString("`/last_run [YYYY-MM-DD | run id]`\n - Show a run and its deliveries. Defaults to tomorrow's pickup.\n\n")
	helpText.WriteString("`/test_message <+phone>`\n - Send this week's reminder to one number without recording it.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
