package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/example/calshare/internal/persistence"
)

func TestEventRepository_ListEvents(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "owner", "owner@example.com")
	for _, id := range []string{"cal-1", "cal-2"} {
		if err := storage.CreateCalendar(ctx, persistence.Calendar{
			ID: id, OwnerID: "owner", Name: id, Color: "#6c6cff", CreatedAt: baseTime, UpdatedAt: baseTime,
		}); err != nil {
			t.Fatalf("CreateCalendar failed: %v", err)
		}
	}

	location := "Room 1"
	due := baseTime.Add(3 * time.Hour)
	events := []persistence.Event{
		{ID: "before", CalendarID: "cal-1", Type: "arrangement", Title: "Before", Start: baseTime.Add(-2 * time.Hour), End: baseTime.Add(-time.Hour)},
		{ID: "overlap", CalendarID: "cal-1", Type: "arrangement", Title: "Overlap", Start: baseTime.Add(-30 * time.Minute), End: baseTime.Add(30 * time.Minute), Location: &location},
		{ID: "task", CalendarID: "cal-1", Type: "task", Title: "Task", Start: due, End: due, DueDate: &due},
		{ID: "other", CalendarID: "cal-2", Type: "arrangement", Title: "Other", Start: baseTime, End: baseTime.Add(time.Hour)},
		{ID: "after", CalendarID: "cal-1", Type: "arrangement", Title: "After", Start: baseTime.Add(5 * time.Hour), End: baseTime.Add(6 * time.Hour)},
	}
	for _, event := range events {
		event.OwnerID = "owner"
		event.CreatedAt, event.UpdatedAt = baseTime, baseTime
		if err := storage.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent(%s) failed: %v", event.ID, err)
		}
	}

	got, err := storage.ListEvents(ctx, persistence.EventFilter{
		CalendarIDs: []string{"cal-1"},
		Start:       baseTime,
		End:         baseTime.Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "overlap" || got[1].ID != "task" {
		t.Fatalf("unexpected events: %#v", got)
	}
	if got[0].Location == nil || *got[0].Location != "Room 1" {
		t.Fatalf("expected location to round-trip, got %v", got[0].Location)
	}
	if got[1].DueDate == nil || !got[1].DueDate.Equal(due) {
		t.Fatalf("expected due date to round-trip, got %v", got[1].DueDate)
	}

	moved := got[0]
	moved.CalendarID = "cal-2"
	moved.AllDay = true
	if err := storage.UpdateEvent(ctx, moved); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	stored, err := storage.GetEvent(ctx, "overlap")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if stored.CalendarID != "cal-2" || !stored.AllDay {
		t.Fatalf("unexpected stored event: %#v", stored)
	}

	if none, err := storage.ListEvents(ctx, persistence.EventFilter{}); err != nil || len(none) != 0 {
		t.Fatalf("expected empty result without calendars, got %v %v", none, err)
	}
}

func TestEventRepository_KeepsSubSecondPrecision(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "owner", "owner@example.com")
	if err := storage.CreateCalendar(ctx, persistence.Calendar{
		ID: "cal-1", OwnerID: "owner", Name: "Team", Color: "#6c6cff", CreatedAt: baseTime, UpdatedAt: baseTime,
	}); err != nil {
		t.Fatalf("CreateCalendar failed: %v", err)
	}

	start := baseTime.Add(100 * time.Millisecond)
	end := start.Add(500 * time.Millisecond)
	reminder := start.Add(123456789 * time.Nanosecond)
	event := persistence.Event{
		ID: "short", CalendarID: "cal-1", OwnerID: "owner", Type: "arrangement", Title: "Blink",
		Start: start, End: end, ReminderAt: &reminder, CreatedAt: start, UpdatedAt: start,
	}
	if err := storage.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	stored, err := storage.GetEvent(ctx, "short")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if !stored.Start.Equal(start) || !stored.End.Equal(end) || !stored.End.After(stored.Start) {
		t.Fatalf("expected %v - %v, got %v - %v", start, end, stored.Start, stored.End)
	}
	if stored.ReminderAt == nil || !stored.ReminderAt.Equal(reminder) {
		t.Fatalf("expected reminder %v, got %v", reminder, stored.ReminderAt)
	}

	// The window ends between start and end of the event, so it only matches
	// when the fraction survives.
	got, err := storage.ListEvents(ctx, persistence.EventFilter{
		CalendarIDs: []string{"cal-1"},
		Start:       baseTime.Add(550 * time.Millisecond),
		End:         baseTime.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "short" {
		t.Fatalf("expected the short event to overlap, got %#v", got)
	}
}
