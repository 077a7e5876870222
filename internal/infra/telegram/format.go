package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trash_reminder_bot/internal/app"
	"trash_reminder_bot/internal/domain/notification"
	"trash_reminder_bot/internal/domain/schedule"
	"trash_reminder_bot/internal/domain/subscriber"
	"trash_reminder_bot/internal/infra/whatsapp"
)

const subscribeUsage = "Usage: /subscribe <+phone> <zone 1-4> <pickup day> <street address>"

// joinZoneToken merges a leading "Zone" argument with the number after it, so
// "/preview Zone 4" reads the same as "/preview 4".
func joinZoneToken(args []string) []string {
	if len(args) < 2 || !strings.EqualFold(args[0], "zone") {
		return args
	}
	return append([]string{args[0] + " " + args[1]}, args[2:]...)
}

// parseSubscribeArgs reads `/subscribe <phone> <zone> <day> <address...>`.
func parseSubscribeArgs(args []string) (app.SubscribeRequest, error) {
	if len(args) > 1 {
		args = append([]string{args[0]}, joinZoneToken(args[1:])...)
	}
	if len(args) < 4 {
		return app.SubscribeRequest{}, fmt.Errorf("%s", subscribeUsage)
	}
	zone, err := schedule.ParseZone(args[1])
	if err != nil {
		return app.SubscribeRequest{}, fmt.Errorf("zone must be 1 to 4, got %q", args[1])
	}
	return app.SubscribeRequest{
		Phone:   args[0],
		Zone:    int(zone),
		Day:     args[2],
		Address: strings.Join(args[3:], " "),
	}, nil
}

// parsePreviewArgs reads `/preview <zone> [day] [YYYY-MM-DD]`. The date defaults to today.
func parsePreviewArgs(args []string, today time.Time) (schedule.Zone, time.Weekday, time.Time, error) {
	regular := time.Weekday(-1)
	args = joinZoneToken(args)
	if len(args) < 1 || len(args) > 3 {
		return 0, regular, time.Time{}, fmt.Errorf("Usage: /preview <zone> [pickup day] [YYYY-MM-DD]")
	}
	zone, err := schedule.ParseZone(args[0])
	if err != nil {
		return 0, regular, time.Time{}, fmt.Errorf("zone must be 1 to 4, got %q", args[0])
	}

	date := today
	for _, arg := range args[1:] {
		if d, err := schedule.ParseDate(arg); err == nil {
			date = d
			continue
		}
		day, err := schedule.ParseWeekday(arg)
		if err != nil {
			return 0, regular, time.Time{}, fmt.Errorf("expected a weekday or YYYY-MM-DD, got %q", arg)
		}
		regular = day
	}
	return zone, regular, date, nil
}

// parseYearArg reads the optional year of `/holidays [year]`.
func parseYearArg(args []string, today time.Time) (int, error) {
	if len(args) == 0 {
		return today.Year(), nil
	}
	year, err := strconv.Atoi(args[0])
	if err != nil || year < 1900 || year > 2200 {
		return 0, fmt.Errorf("year must be a number between 1900 and 2200, got %q", args[0])
	}
	return year, nil
}

// parseRunArg reads `/last_run [YYYY-MM-DD | run id]`. With no argument the
// run for pickupDate is meant. Exactly one of the results is set.
func parseRunArg(args []string, pickupDate time.Time) (uuid.UUID, time.Time, error) {
	switch len(args) {
	case 0:
		return uuid.Nil, pickupDate, nil
	case 1:
		if id, err := uuid.Parse(args[0]); err == nil {
			return id, time.Time{}, nil
		}
		if d, err := schedule.ParseDate(args[0]); err == nil {
			return uuid.Nil, d, nil
		}
		return uuid.Nil, time.Time{}, fmt.Errorf("expected a pickup date YYYY-MM-DD or a run id, got %q", args[0])
	default:
		return uuid.Nil, time.Time{}, fmt.Errorf("Usage: /last_run [YYYY-MM-DD | run id]")
	}
}

func formatSubscribed(sub *subscriber.Subscriber, created bool) string {
	verb := "Updated"
	if created {
		verb = "Subscribed"
	}
	return fmt.Sprintf("%s %s (%s, %s pickup) at %s.", verb, sub.Phone, sub.Zone, sub.CollectionDay, sub.Address)
}

func formatSubscribers(subs []*subscriber.Subscriber) string {
	if len(subs) == 0 {
		return "No subscribers yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- Subscribers (%d) ---\n", len(subs)))
	for _, s := range subs {
		consent := "yes"
		if !s.Consent {
			consent = "no"
		}
		b.WriteString(fmt.Sprintf("%s | %s | %s | %s | consent: %s\n", s.Phone, s.Zone, s.CollectionDay, s.Address, consent))
	}
	return b.String()
}

func formatPreview(p *app.Preview) string {
	var b strings.Builder
	monday, sunday := schedule.WeekBounds(p.Date)
	b.WriteString(fmt.Sprintf("%s, week of %s to %s\n", p.Zone, monday.Format(schedule.DateLayout), sunday.Format(schedule.DateLayout)))
	if p.PickupDay >= 0 {
		b.WriteString(fmt.Sprintf("Pickup day: %s\n", p.PickupDay))
	}
	b.WriteString(fmt.Sprintf("Template: %s\n", p.Kind))
	b.WriteString("Message: ")
	b.WriteString(whatsapp.Body(p.Kind, p.Vars))
	return b.String()
}

func formatHolidays(year int, holidays []schedule.Holiday) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- Holidays %d ---\n", year))
	for _, h := range holidays {
		b.WriteString(fmt.Sprintf("%s %s  %s\n", h.Date.Format(schedule.DateLayout), h.Weekday().String()[:3], h.Name))
	}
	return b.String()
}

func formatRun(run *notification.Run) string {
	return fmt.Sprintf("Run for %s %s: %d sent, %d failed, %d skipped.",
		run.PickupDate.Weekday(), run.PickupDate.Format(schedule.DateLayout), run.Sent, run.Failed, run.Skipped)
}

func formatRunReport(report *app.RunReport) string {
	var b strings.Builder
	run := report.Run
	b.WriteString(formatRun(run))
	b.WriteString(fmt.Sprintf("\nRun %s started %s", run.ID, run.StartedAt.Format(time.RFC3339)))
	if !run.FinishedAt.Valid {
		b.WriteString(", not finished")
	}
	b.WriteString("\n")
	for _, d := range report.Deliveries {
		detail := d.MessageID.String
		if d.Status != notification.DeliverySent {
			detail = d.Error.String
		}
		b.WriteString(fmt.Sprintf("%s | %s | %s | %s\n", d.Phone, d.Status, d.Kind, detail))
	}
	return b.String()
}
