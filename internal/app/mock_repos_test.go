package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/domain/schedule"
	"trash_reminder_bot/internal/domain/subscriber"
	idb "trash_reminder_bot/internal/infra/database"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// ── Mock subscriber.Repository ──

type mockSubscriberRepo struct {
	subscribers map[string]*subscriber.Subscriber
	listErr     error
}

func newMockSubscriberRepo(subs ...*subscriber.Subscriber) *mockSubscriberRepo {
	m := &mockSubscriberRepo{subscribers: make(map[string]*subscriber.Subscriber)}
	for _, s := range subs {
		m.subscribers[s.Phone] = s
	}
	return m
}

func (m *mockSubscriberRepo) List(_ context.Context) ([]*subscriber.Subscriber, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]*subscriber.Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Phone < result[j].Phone })
	return result, nil
}

func (m *mockSubscriberRepo) GetByPhone(_ context.Context, phone string) (*subscriber.Subscriber, error) {
	if s, ok := m.subscribers[phone]; ok {
		return s, nil
	}
	return nil, idb.ErrSubscriberNotFound
}

func (m *mockSubscriberRepo) Upsert(_ context.Context, s *subscriber.Subscriber) error {
	if existing, ok := m.subscribers[s.Phone]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else {
		s.ID = int64(len(m.subscribers) + 1)
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	m.subscribers[s.Phone] = s
	return nil
}

func (m *mockSubscriberRepo) Remove(_ context.Context, phone string) error {
	if _, ok := m.subscribers[phone]; !ok {
		return idb.ErrSubscriberNotFound
	}
	delete(m.subscribers, phone)
	return nil
}

// ── Mock notification.Repository ──

type mockNotificationRepo struct {
	runs       map[uuid.UUID]*notification.Run
	deliveries []*notification.Delivery
	delivered  map[string]bool // phone|date
	hasErr     error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		runs:      make(map[uuid.UUID]*notification.Run),
		delivered: make(map[string]bool),
	}
}

func deliveryKey(phone string, pickupDate time.Time) string {
	return phone + "|" + pickupDate.Format(schedule.DateLayout)
}

func (m *mockNotificationRepo) markDelivered(phone string, pickupDate time.Time) {
	m.delivered[deliveryKey(phone, pickupDate)] = true
}

func (m *mockNotificationRepo) CreateRun(_ context.Context, run *notification.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) FinishRun(_ context.Context, run *notification.Run) error {
	if _, ok := m.runs[run.ID]; !ok {
		return idb.ErrRunNotFound
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockNotificationRepo) GetRunByID(_ context.Context, id uuid.UUID) (*notification.Run, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, idb.ErrRunNotFound
}

func (m *mockNotificationRepo) GetLatestRunByPickupDate(_ context.Context, pickupDate time.Time) (*notification.Run, error) {
	var latest *notification.Run
	for _, r := range m.runs {
		if r.PickupDate.Equal(pickupDate) && (latest == nil || r.StartedAt.After(latest.StartedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, idb.ErrRunNotFound
	}
	return latest, nil
}

func (m *mockNotificationRepo) RecordDelivery(_ context.Context, d *notification.Delivery) error {
	if d.Status == notification.DeliverySent {
		key := deliveryKey(d.Phone, d.PickupDate)
		if m.delivered[key] {
			return idb.ErrDuplicateDelivery
		}
		m.delivered[key] = true
	}
	d.ID = int64(len(m.deliveries) + 1)
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *mockNotificationRepo) HasDelivered(_ context.Context, phone string, pickupDate time.Time) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	return m.delivered[deliveryKey(phone, pickupDate)], nil
}

func (m *mockNotificationRepo) ListDeliveriesByRun(_ context.Context, runID uuid.UUID) ([]*notification.Delivery, error) {
	var result []*notification.Delivery
	for _, d := range m.deliveries {
		if d.RunID == runID {
			result = append(result, d)
		}
	}
	return result, nil
}

// ── Mock notification.Sender ──

type sentMessage struct {
	recipient string
	kind      notification.TemplateKind
	vars      notification.Variables
}

type mockSender struct {
	sent    []sentMessage
	failFor map[string]bool
}

func (m *mockSender) Send(_ context.Context, recipient string, kind notification.TemplateKind, vars notification.Variables) (string, error) {
	if m.failFor[recipient] {
		return "", fmt.Errorf("provider rejected %s", recipient)
	}
	m.sent = append(m.sent, sentMessage{recipient: recipient, kind: kind, vars: vars})
	return fmt.Sprintf("SM%d", len(m.sent)), nil
}

// ── Mock RunLocker / HolidaySource / Notifier ──

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (m *mockLocker) TryAcquire(_ context.Context, key string) (func(context.Context) error, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		m.released = append(m.released, key)
		return nil
	}, true, nil
}

type mockHolidaySource struct {
	overrides schedule.Overrides
	err       error
}

func (m *mockHolidaySource) Load(_ context.Context) (schedule.Overrides, error) {
	return m.overrides, m.err
}

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Notify(_ int64, text string, _ *telebot.SendOptions) error {
	m.messages = append(m.messages, text)
	return nil
}
