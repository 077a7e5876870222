package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/domain/schedule"
	idb "trash_reminder_bot/internal/infra/database"
)

const testAdminID int64 = 42

type stubReminders struct {
	calls int
}

func (s *stubReminders) SendNightlyReminders(_ context.Context, now time.Time) (*notification.Run, error) {
	s.calls++
	return &notification.Run{StartedAt: now}, nil
}

type adminFixture struct {
	svc       *AdminService
	subs      *mockSubscriberRepo
	notifs    *mockNotificationRepo
	sender    *mockSender
	reminders *stubReminders
}

func newAdminFixture(t *testing.T, src HolidaySource) *adminFixture {
	t.Helper()
	f := &adminFixture{
		subs:      newMockSubscriberRepo(),
		notifs:    newMockNotificationRepo(),
		sender:    &mockSender{failFor: map[string]bool{}},
		reminders: &stubReminders{},
	}
	f.svc = NewAdminService(f.subs, f.notifs, f.sender, newTestResolver(t), src, f.reminders, testAdminID, eastern, quietLogger())
	return f
}

func newTestAdminService(t *testing.T, src HolidaySource) (*AdminService, *mockSubscriberRepo, *stubReminders) {
	t.Helper()
	f := newAdminFixture(t, src)
	return f.svc, f.subs, f.reminders
}

func TestAdminRejectsOtherUsers(t *testing.T) {
	svc, _, reminders := newTestAdminService(t, nil)
	ctx := context.Background()

	if _, _, err := svc.Subscribe(ctx, 7, SubscribeRequest{Phone: "+16105550001", Zone: 1, Day: "Monday", Address: "1 Main St"}); err != ErrAdminNotAuthorized {
		t.Errorf("Subscribe() error = %v", err)
	}
	if err := svc.Unsubscribe(ctx, 7, "+16105550001"); err != ErrAdminNotAuthorized {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if _, err := svc.ListSubscribers(ctx, 7); err != ErrAdminNotAuthorized {
		t.Errorf("ListSubscribers() error = %v", err)
	}
	if _, err := svc.Preview(ctx, 7, schedule.Zone1, -1, time.Now()); err != ErrAdminNotAuthorized {
		t.Errorf("Preview() error = %v", err)
	}
	if _, err := svc.Holidays(7, 2026); err != ErrAdminNotAuthorized {
		t.Errorf("Holidays() error = %v", err)
	}
	if _, err := svc.SendNow(ctx, 7); err != ErrAdminNotAuthorized || reminders.calls != 0 {
		t.Errorf("SendNow() error = %v, calls = %d", err, reminders.calls)
	}
	if _, err := svc.LastRun(ctx, 7, time.Now()); err != ErrAdminNotAuthorized {
		t.Errorf("LastRun() error = %v", err)
	}
	if _, err := svc.RunByID(ctx, 7, uuid.New()); err != ErrAdminNotAuthorized {
		t.Errorf("RunByID() error = %v", err)
	}
	if _, err := svc.TestMessage(ctx, 7, "+16105550001"); err != ErrAdminNotAuthorized {
		t.Errorf("TestMessage() error = %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	svc, repo, _ := newTestAdminService(t, nil)

	got, created, err := svc.Subscribe(context.Background(), testAdminID, SubscribeRequest{
		Phone: " +16105550001 ", Zone: 3, Day: "thu", Address: "12 Oak Lane",
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !created {
		t.Error("first Subscribe() reported an update")
	}
	if got.Phone != "+16105550001" || got.Zone != schedule.Zone3 || got.CollectionDay != time.Thursday || !got.Consent {
		t.Errorf("subscriber = %+v", got)
	}
	if _, ok := repo.subscribers["+16105550001"]; !ok {
		t.Error("subscriber not stored")
	}

	// Re-subscribing replaces the record.
	again, created, err := svc.Subscribe(context.Background(), testAdminID, SubscribeRequest{
		Phone: "+16105550001", Zone: 4, Day: "Friday", Address: "12 Oak Lane",
	})
	if err != nil {
		t.Fatalf("second Subscribe() error = %v", err)
	}
	if created {
		t.Error("second Subscribe() reported a new subscriber")
	}
	if again.ID != got.ID || len(repo.subscribers) != 1 || repo.subscribers["+16105550001"].Zone != schedule.Zone4 {
		t.Errorf("re-subscribe did not replace: %+v", repo.subscribers)
	}
}

func TestSubscribeValidation(t *testing.T) {
	svc, repo, _ := newTestAdminService(t, nil)

	tests := []struct {
		name string
		req  SubscribeRequest
	}{
		{"local phone format", SubscribeRequest{Phone: "610-555-0001", Zone: 1, Day: "Monday", Address: "1 Main St"}},
		{"zone out of range", SubscribeRequest{Phone: "+16105550001", Zone: 5, Day: "Monday", Address: "1 Main St"}},
		{"missing zone", SubscribeRequest{Phone: "+16105550001", Day: "Monday", Address: "1 Main St"}},
		{"unknown day", SubscribeRequest{Phone: "+16105550001", Zone: 1, Day: "Funday", Address: "1 Main St"}},
		{"weekend day", SubscribeRequest{Phone: "+16105550001", Zone: 1, Day: "Saturday", Address: "1 Main St"}},
		{"missing address", SubscribeRequest{Phone: "+16105550001", Zone: 1, Day: "Monday", Address: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Subscribe(context.Background(), testAdminID, tt.req); !errors.Is(err, ErrInvalidSubscriber) {
				t.Errorf("Subscribe() error = %v, want ErrInvalidSubscriber", err)
			}
		})
	}
	if len(repo.subscribers) != 0 {
		t.Errorf("invalid requests stored subscribers: %v", repo.subscribers)
	}
}

func TestUnsubscribe(t *testing.T) {
	svc, repo, _ := newTestAdminService(t, nil)
	repo.subscribers["+16105550001"] = sub("+16105550001", schedule.Zone1, time.Monday, true)

	if err := svc.Unsubscribe(context.Background(), testAdminID, "+16105550001"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := svc.Unsubscribe(context.Background(), testAdminID, "+16105550001"); err != idb.ErrSubscriberNotFound {
		t.Errorf("second Unsubscribe() error = %v, want ErrSubscriberNotFound", err)
	}
}

func TestPreview(t *testing.T) {
	svc, _, _ := newTestAdminService(t, nil)

	p, err := svc.Preview(context.Background(), testAdminID, schedule.Zone4, time.Friday, time.Date(2025, 11, 25, 15, 0, 0, 0, eastern))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.Kind != notification.TemplateHoliday || p.Vars.HolidayNote != "Thanksgiving Day on Thursday. Pickup shifted to Friday this week." {
		t.Errorf("preview = %+v", p)
	}
	if p.PickupDay != time.Friday {
		t.Errorf("PickupDay = %s, want Friday", p.PickupDay)
	}

	p, err = svc.Preview(context.Background(), testAdminID, schedule.Zone2, -1, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.Kind != notification.TemplateBasic || p.PickupDay != -1 {
		t.Errorf("quiet-week preview = %+v", p)
	}

	if _, err := svc.Preview(context.Background(), testAdminID, schedule.Zone(9), -1, time.Now()); !errors.Is(err, schedule.ErrInvalidZone) {
		t.Errorf("Preview(Zone 9) error = %v", err)
	}
}

func TestPreviewUsesHolidaySource(t *testing.T) {
	src := &mockHolidaySource{overrides: schedule.Overrides{"2026-03-11": {schedule.Zone2: "Water main work: pickup Thursday."}}}
	svc, _, _ := newTestAdminService(t, src)

	p, err := svc.Preview(context.Background(), testAdminID, schedule.Zone2, -1, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if p.Vars.HolidayNote != "Water main work: pickup Thursday." {
		t.Errorf("note = %q", p.Vars.HolidayNote)
	}
}

func TestHolidaysAndSendNow(t *testing.T) {
	svc, _, reminders := newTestAdminService(t, nil)

	holidays, err := svc.Holidays(testAdminID, 2026)
	if err != nil || len(holidays) != 8 {
		t.Fatalf("Holidays(2026) = %d, %v", len(holidays), err)
	}
	if _, err := svc.SendNow(context.Background(), testAdminID); err != nil || reminders.calls != 1 {
		t.Errorf("SendNow() error = %v, calls = %d", err, reminders.calls)
	}
}

func TestLastRun(t *testing.T) {
	f := newAdminFixture(t, nil)
	ctx := context.Background()
	pickup := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	older := &notification.Run{PickupDate: pickup, StartedAt: evening(2026, 1, 12)}
	latest := &notification.Run{PickupDate: pickup, StartedAt: evening(2026, 1, 12).Add(time.Hour), Sent: 1, Failed: 1}
	for _, r := range []*notification.Run{older, latest} {
		if err := f.notifs.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}
	f.notifs.deliveries = []*notification.Delivery{
		{RunID: older.ID, Phone: "+16105550009", Status: notification.DeliveryFailed},
		{RunID: latest.ID, Phone: "+16105550001", Status: notification.DeliverySent},
		{RunID: latest.ID, Phone: "+16105550002", Status: notification.DeliveryFailed},
	}

	report, err := f.svc.LastRun(ctx, testAdminID, pickup.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if report.Run.ID != latest.ID || len(report.Deliveries) != 2 {
		t.Errorf("LastRun() = run %s with %d deliveries, want run %s with 2", report.Run.ID, len(report.Deliveries), latest.ID)
	}

	byID, err := f.svc.RunByID(ctx, testAdminID, older.ID)
	if err != nil {
		t.Fatalf("RunByID() error = %v", err)
	}
	if len(byID.Deliveries) != 1 || byID.Deliveries[0].Phone != "+16105550009" {
		t.Errorf("RunByID() deliveries = %+v", byID.Deliveries)
	}

	if _, err := f.svc.LastRun(ctx, testAdminID, pickup.AddDate(0, 0, 1)); !errors.Is(err, idb.ErrRunNotFound) {
		t.Errorf("LastRun(no run) error = %v, want ErrRunNotFound", err)
	}
	if _, err := f.svc.RunByID(ctx, testAdminID, uuid.New()); !errors.Is(err, idb.ErrRunNotFound) {
		t.Errorf("RunByID(unknown) error = %v, want ErrRunNotFound", err)
	}
}

func TestTestMessage(t *testing.T) {
	f := newAdminFixture(t, nil)
	f.subs.subscribers["+16105550003"] = sub("+16105550003", schedule.Zone3, time.Thursday, true)
	ctx := context.Background()

	id, err := f.svc.TestMessage(ctx, testAdminID, " +16105550003 ")
	if err != nil {
		t.Fatalf("TestMessage() error = %v", err)
	}
	if id == "" || len(f.sender.sent) != 1 || f.sender.sent[0].recipient != "+16105550003" {
		t.Fatalf("sent = %+v, id = %q", f.sender.sent, id)
	}
	msg := f.sender.sent[0]
	want := f.svc.resolver.Resolve(schedule.Zone3, f.svc.NextPickupDate())
	if msg.vars != (notification.Variables{RecyclingType: want.RecyclingType, HolidayNote: want.HolidayNote}) {
		t.Errorf("vars = %+v, want %+v", msg.vars, want)
	}

	// Unknown phones still get a message; the ledger is left alone.
	if _, err := f.svc.TestMessage(ctx, testAdminID, "+16105550099"); err != nil {
		t.Errorf("TestMessage(unsubscribed) error = %v", err)
	}
	if len(f.notifs.deliveries) != 0 || len(f.notifs.runs) != 0 {
		t.Errorf("test messages touched the ledger: %d runs, %d deliveries", len(f.notifs.runs), len(f.notifs.deliveries))
	}

	if _, err := f.svc.TestMessage(ctx, testAdminID, "610-555-0001"); !errors.Is(err, ErrInvalidSubscriber) {
		t.Errorf("TestMessage(local format) error = %v, want ErrInvalidSubscriber", err)
	}

	f.sender.failFor["+16105550004"] = true
	if _, err := f.svc.TestMessage(ctx, testAdminID, "+16105550004"); err == nil {
		t.Error("TestMessage() with a failing provider returned no error")
	}
	if len(f.sender.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(f.sender.sent))
	}
}
