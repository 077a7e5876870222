// internal/infra/whatsapp/twilio_sender.go
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"trash_reminder_bot/internal/domain/notification"
)

const channelPrefix = "whatsapp:"

// messageCreator is the part of the Twilio REST client the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Templates maps template kinds to approved Twilio Content SIDs.
// A kind without a SID is sent as a plain body.
type Templates map[notification.TemplateKind]string

// TwilioSender implements notification.Sender over the Twilio Messages API.
type TwilioSender struct {
	api       messageCreator
	from      string
	templates Templates
	logger    *logrus.Entry
}

func NewTwilioSender(accountSID, authToken, from string, templates Templates, logger *logrus.Entry) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSender(client.Api, from, templates, logger)
}

func newTwilioSender(api messageCreator, from string, templates Templates, logger *logrus.Entry) *TwilioSender {
	return &TwilioSender{
		api:       api,
		from:      withChannel(from),
		templates: templates,
		logger:    logger,
	}
}

// Send delivers one reminder and returns the Twilio message SID.
func (s *TwilioSender) Send(ctx context.Context, recipient string, kind notification.TemplateKind, vars notification.Variables) (string, error) {
	// The Twilio client takes no context; honour cancellation before the call.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(withChannel(recipient))
	params.SetFrom(s.from)

	if sid := s.templates[kind]; sid != "" {
		contentVars, err := contentVariables(kind, vars)
		if err != nil {
			return "", err
		}
		params.SetContentSid(sid)
		params.SetContentVariables(contentVars)
	} else {
		params.SetBody(Body(kind, vars))
	}

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if msg == nil || msg.Sid == nil {
		return "", fmt.Errorf("twilio create message: response without SID")
	}

	s.logger.WithFields(logrus.Fields{
		"kind": kind,
		"sid":  *msg.Sid,
	}).Debug("WhatsApp message accepted")
	return *msg.Sid, nil
}

// contentVariables fills the numbered placeholders of the approved templates:
// {{1}} is the recycling type, {{2}} the holiday note.
func contentVariables(kind notification.TemplateKind, vars notification.Variables) (string, error) {
	values := map[string]string{"1": string(vars.RecyclingType)}
	if kind == notification.TemplateHoliday {
		values["2"] = vars.HolidayNote
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode content variables: %w", err)
	}
	return string(b), nil
}

// Body renders the plain-text form of a reminder.
func Body(kind notification.TemplateKind, vars notification.Variables) string {
	text := fmt.Sprintf("Reminder: trash pickup is tomorrow. Recycling this week: %s.", vars.RecyclingType)
	if kind == notification.TemplateHoliday && vars.HolidayNote != "" {
		text += " " + vars.HolidayNote
	}
	return text
}

func withChannel(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, channelPrefix) {
		return number
	}
	return channelPrefix + number
}
