package icsexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/calshare/internal/application"
)

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	calendar := application.Calendar{ID: "cal-1", OwnerID: "alice", Name: "Team", Color: "#6c6cff"}
	events := []application.Event{
		{
			ID: "evt-1", CalendarID: "cal-1", Type: application.EventTypeArrangement,
			Title: "Kickoff", Start: start, End: start.Add(time.Hour),
			Location: "Room 4", Description: "Agenda",
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "evt-2", CalendarID: "cal-1", Type: application.EventTypeReminder,
			Title: "Call Bob", Start: start, End: start,
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "evt-3", CalendarID: "cal-1", Type: application.EventTypeArrangement,
			Title: "Offsite", Start: start.Truncate(24 * time.Hour), End: start.Truncate(24 * time.Hour), AllDay: true,
			CreatedAt: created, UpdatedAt: created,
		},
	}

	body, err := NewExporter("").Export(calendar, events)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	text := string(body)
	for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:" + ProductID, "METHOD:PUBLISH", "X-WR-CALNAME:Team", "BEGIN:VALARM"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in export:\n%s", want, text)
		}
	}

	parsed, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ParseCalendar failed: %v", err)
	}
	vevents := parsed.Events()
	if len(vevents) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(vevents))
	}

	first := vevents[0]
	if uid := first.GetProperty(ical.ComponentPropertyUniqueId); uid == nil || uid.Value != "evt-1@calshare" {
		t.Fatalf("unexpected UID: %#v", uid)
	}
	if p := first.GetProperty(ical.ComponentPropertyLocation); p == nil || p.Value != "Room 4" {
		t.Fatalf("unexpected LOCATION: %#v", p)
	}
	gotStart, err := first.GetStartAt()
	if err != nil || !gotStart.Equal(start) {
		t.Fatalf("unexpected DTSTART %v (%v)", gotStart, err)
	}
	if p := vevents[1].GetProperty(propertyEventType); p == nil || p.Value != "reminder" {
		t.Fatalf("expected reminder type tag, got %#v", p)
	}
	if p := vevents[2].GetProperty(ical.ComponentPropertyDtStart); p == nil || strings.Contains(p.Value, "T") {
		t.Fatalf("expected all-day DTSTART, got %#v", p)
	}
}

func TestExporter_RejectsMissingIDs(t *testing.T) {
	t.Parallel()

	exporter := NewExporter("-//test//EN")
	if _, err := exporter.Export(application.Calendar{}, nil); err == nil {
		t.Fatalf("expected error for calendar without id")
	}
	if _, err := exporter.Export(application.Calendar{ID: "cal"}, []application.Event{{Title: "x"}}); err == nil {
		t.Fatalf("expected error for event without id")
	}
}
