package telegram

import "gopkg.in/telebot.v3"

// Notifier posts operator-facing messages (run summaries, failures) to a chat.
type Notifier interface {
	Notify(chatID int64, text string, options *telebot.SendOptions) error
}
