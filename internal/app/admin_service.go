package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/domain/schedule"
	"trash_reminder_bot/internal/domain/subscriber"
	idb "trash_reminder_bot/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrInvalidSubscriber = fmt.Errorf("invalid subscriber")

// SubscribeRequest is the operator's input for enrolling a household.
type SubscribeRequest struct {
	Phone   string `validate:"required,e164"`
	Zone    int    `validate:"required,min=1,max=4"`
	Day     string `validate:"required"`
	Address string `validate:"required,max=200"`
}

// Preview is what a household in Zone would be told for the week of Date.
type Preview struct {
	Zone      schedule.Zone
	Date      time.Time
	PickupDay time.Weekday // -1 when the household's regular day is unknown
	Kind      notification.TemplateKind
	Vars      notification.Variables
}

// RunReport is a reminder run together with its recorded delivery attempts.
type RunReport struct {
	Run        *notification.Run
	Deliveries []*notification.Delivery
}

type AdminService struct {
	subscriberRepo  subscriber.Repository
	notifRepo       notification.Repository
	sender          notification.Sender
	resolver        *schedule.Resolver
	holidaySource   HolidaySource
	reminders       ReminderService
	validate        *validator.Validate
	adminTelegramID int64
	location        *time.Location
	logger          *logrus.Entry
}

func NewAdminService(
	sr subscriber.Repository,
	nr notification.Repository,
	sender notification.Sender,
	resolver *schedule.Resolver,
	holidaySource HolidaySource, // may be nil
	reminders ReminderService,
	adminID int64,
	location *time.Location,
	logger *logrus.Entry,
) *AdminService {
	return &AdminService{
		subscriberRepo:  sr,
		notifRepo:       nr,
		sender:          sender,
		resolver:        resolver,
		holidaySource:   holidaySource,
		reminders:       reminders,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		adminTelegramID: adminID,
		location:        location,
		logger:          logger,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// Subscribe creates or replaces the household registered under req.Phone and
// reports whether it was newly created.
// Enrolment through the operator records the household's consent.
func (s *AdminService) Subscribe(ctx context.Context, performingAdminID int64, req SubscribeRequest) (*subscriber.Subscriber, bool, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, false, err
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	if err := s.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fe := validationErrors[0]
			return nil, false, fmt.Errorf("%w: %s fails the '%s' check", ErrInvalidSubscriber, strings.ToLower(fe.Field()), fe.Tag())
		}
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidSubscriber, err)
	}

	day, err := schedule.ParseWeekday(req.Day)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidSubscriber, err)
	}
	if day == time.Saturday || day == time.Sunday {
		return nil, false, fmt.Errorf("%w: collection day must be Monday to Friday", ErrInvalidSubscriber)
	}

	created := false
	if _, err := s.subscriberRepo.GetByPhone(ctx, req.Phone); err != nil {
		if !errors.Is(err, idb.ErrSubscriberNotFound) {
			return nil, false, fmt.Errorf("failed to look up subscriber: %w", err)
		}
		created = true
	}

	sub := &subscriber.Subscriber{
		Phone:         req.Phone,
		Address:       req.Address,
		Zone:          schedule.Zone(req.Zone),
		CollectionDay: day,
		Consent:       true,
	}
	if err := s.subscriberRepo.Upsert(ctx, sub); err != nil {
		return nil, false, fmt.Errorf("failed to save subscriber: %w", err)
	}
	return sub, created, nil
}

// Unsubscribe removes the household. Returns idb.ErrSubscriberNotFound for unknown phones.
func (s *AdminService) Unsubscribe(ctx context.Context, performingAdminID int64, phone string) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if err := s.subscriberRepo.Remove(ctx, strings.TrimSpace(phone)); err != nil {
		if err == idb.ErrSubscriberNotFound {
			return err
		}
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return nil
}

func (s *AdminService) ListSubscribers(ctx context.Context, performingAdminID int64) ([]*subscriber.Subscriber, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	subs, err := s.subscriberRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

// Preview resolves the reminder a household in zone would receive for date.
// regular is the household's regular pickup day; pass -1 when unknown.
func (s *AdminService) Preview(ctx context.Context, performingAdminID int64, zone schedule.Zone, regular time.Weekday, date time.Time) (*Preview, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if !zone.Valid() {
		return nil, schedule.ErrInvalidZone
	}

	resolver := effectiveResolver(ctx, s.resolver, s.holidaySource, s.logger)
	date = schedule.Date(date)
	kind, vars := notification.Compose(resolver.Resolve(zone, date))

	p := &Preview{Zone: zone, Date: date, Kind: kind, Vars: vars, PickupDay: -1}
	if regular >= time.Monday && regular <= time.Friday {
		p.PickupDay = resolver.PickupDay(zone, regular, date)
	}
	return p, nil
}

// Holidays lists the observed holidays of year.
func (s *AdminService) Holidays(performingAdminID int64, year int) ([]schedule.Holiday, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.resolver.Holidays(year)
}

// SendNow runs tonight's reminder batch immediately.
func (s *AdminService) SendNow(ctx context.Context, performingAdminID int64) (*notification.Run, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.reminders.SendNightlyReminders(ctx, time.Now())
}

// LastRun reports the most recent run for pickupDate and its deliveries.
// Returns idb.ErrRunNotFound when no run exists for that date.
func (s *AdminService) LastRun(ctx context.Context, performingAdminID int64, pickupDate time.Time) (*RunReport, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	run, err := s.notifRepo.GetLatestRunByPickupDate(ctx, schedule.Date(pickupDate))
	if err != nil {
		if errors.Is(err, idb.ErrRunNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return s.runReport(ctx, run)
}

// RunByID reports a single run and its deliveries.
func (s *AdminService) RunByID(ctx context.Context, performingAdminID int64, id uuid.UUID) (*RunReport, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	run, err := s.notifRepo.GetRunByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrRunNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return s.runReport(ctx, run)
}

func (s *AdminService) runReport(ctx context.Context, run *notification.Run) (*RunReport, error) {
	deliveries, err := s.notifRepo.ListDeliveriesByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries of run %s: %w", run.ID, err)
	}
	return &RunReport{Run: run, Deliveries: deliveries}, nil
}

// TestMessage sends the reminder for the coming pickup week to phone without
// touching the delivery ledger. A subscribed phone gets its own zone's message,
// any other phone gets Zone 1's. Returns the provider message ID.
func (s *AdminService) TestMessage(ctx context.Context, performingAdminID int64, phone string) (string, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return "", err
	}
	phone = strings.TrimSpace(phone)
	if err := s.validate.Var(phone, "required,e164"); err != nil {
		return "", fmt.Errorf("%w: phone %q is not in +E.164 form", ErrInvalidSubscriber, phone)
	}

	zone := schedule.Zone1
	existing, err := s.subscriberRepo.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		zone = existing.Zone
	case !errors.Is(err, idb.ErrSubscriberNotFound):
		return "", fmt.Errorf("failed to look up subscriber: %w", err)
	}

	resolver := effectiveResolver(ctx, s.resolver, s.holidaySource, s.logger)
	pickupDate := s.NextPickupDate()
	kind, vars := notification.Compose(resolver.Resolve(zone, pickupDate))

	logCtx := s.logger.WithFields(logrus.Fields{
		"phone":       phone,
		"zone":        zone.String(),
		"pickup_date": pickupDate.Format(schedule.DateLayout),
		"template":    string(kind),
	})
	messageID, err := s.sender.Send(ctx, phone, kind, vars)
	if err != nil {
		logCtx.WithError(err).Warn("Test message failed")
		return "", fmt.Errorf("failed to send test message: %w", err)
	}
	logCtx.WithField("message_id", messageID).Info("Test message sent")
	return messageID, nil
}

// NextPickupDate is the pickup date tonight's run reminds about.
func (s *AdminService) NextPickupDate() time.Time {
	return PickupDateFor(time.Now(), s.location)
}

// Today is the current civil date in the service timezone.
func (s *AdminService) Today() time.Time {
	now := time.Now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
