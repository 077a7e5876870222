package telegram

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// senderContext answers Sender and records Send; every other telebot.Context
// method is unused.
type senderContext struct {
	telebot.Context
	sender *telebot.User
	sent   *[]interface{}
}

func (c senderContext) Sender() *telebot.User {
	return c.sender
}

func (c senderContext) Send(what interface{}, _ ...interface{}) error {
	*c.sent = append(*c.sent, what)
	return nil
}

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestOperatorCheck(t *testing.T) {
	const admin int64 = 42

	tests := []struct {
		name   string
		sender *telebot.User
		wantID int64
		wantOK bool
	}{
		{"operator", &telebot.User{ID: 42}, 42, true},
		{"someone else", &telebot.User{ID: 7}, 7, false},
		{"channel post without sender", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := senderContext{sender: tt.sender}
			if got := senderID(c); got != tt.wantID {
				t.Errorf("senderID() = %d, want %d", got, tt.wantID)
			}
			if got := isOperator(c, admin); got != tt.wantOK {
				t.Errorf("isOperator() = %v, want %v", got, tt.wantOK)
			}
		})
	}

	// An unset operator ID never matches a missing sender.
	if isOperator(senderContext{}, 0) {
		t.Error("isOperator(nil sender, 0) = true")
	}
}

func TestGuard(t *testing.T) {
	guard := newGuard(42, quietEntry())

	tests := []struct {
		name     string
		sender   *telebot.User
		wantNext bool
		wantSent int
	}{
		{"operator", &telebot.User{ID: 42}, true, 0},
		{"someone else", &telebot.User{ID: 7}, false, 1},
		{"no sender", nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []interface{}
			called := false
			h := guard("/subscribers", func(telebot.Context, *logrus.Entry) error {
				called = true
				return nil
			})
			if err := h(senderContext{sender: tt.sender, sent: &sent}); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if len(sent) != tt.wantSent {
				t.Errorf("sent %v, want %d messages", sent, tt.wantSent)
			}
			if tt.wantSent == 1 && sent[0] != notAuthorizedMsg {
				t.Errorf("sent %v, want the not-authorized reply", sent[0])
			}
		})
	}
}
