package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/calshare/internal/persistence"
)

func TestCalendarRepository(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "owner", "owner@example.com")
	seedUser(t, storage, "bob", "bob@example.com")
	seedUser(t, storage, "carol", "carol@example.com")

	calendar := persistence.Calendar{
		ID:        "cal-1",
		OwnerID:   "owner",
		Name:      "Team",
		Color:     "#6c6cff",
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	if err := storage.CreateCalendar(ctx, calendar); err != nil {
		t.Fatalf("CreateCalendar failed: %v", err)
	}

	t.Run("rejects a second calendar with the same owner and name", func(t *testing.T) {
		dup := calendar
		dup.ID = "cal-dup"
		if err := storage.CreateCalendar(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("replaces the member set on save and keeps insertion order", func(t *testing.T) {
		calendar.Members = []persistence.CalendarMember{
			{UserID: "carol", Role: "viewer", AddedAt: baseTime},
			{UserID: "bob", Role: "editor", AddedAt: baseTime.Add(time.Minute)},
		}
		calendar.UpdatedAt = baseTime.Add(time.Hour)
		if err := storage.SaveCalendar(ctx, calendar); err != nil {
			t.Fatalf("SaveCalendar failed: %v", err)
		}

		fetched, err := storage.GetCalendar(ctx, "cal-1")
		if err != nil {
			t.Fatalf("GetCalendar failed: %v", err)
		}
		if len(fetched.Members) != 2 || fetched.Members[0].UserID != "carol" || fetched.Members[1].Role != "editor" {
			t.Fatalf("unexpected members: %#v", fetched.Members)
		}

		calendar.Members = calendar.Members[1:]
		if err := storage.SaveCalendar(ctx, calendar); err != nil {
			t.Fatalf("SaveCalendar failed: %v", err)
		}
		fetched, err = storage.GetCalendar(ctx, "cal-1")
		if err != nil {
			t.Fatalf("GetCalendar failed: %v", err)
		}
		if len(fetched.Members) != 1 || fetched.Members[0].UserID != "bob" {
			t.Fatalf("expected only bob to remain, got %#v", fetched.Members)
		}
	})

	t.Run("rejects duplicate member rows", func(t *testing.T) {
		broken := calendar
		broken.Members = []persistence.CalendarMember{
			{UserID: "bob", Role: "viewer", AddedAt: baseTime},
			{UserID: "bob", Role: "admin", AddedAt: baseTime},
		}
		if err := storage.SaveCalendar(ctx, broken); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		fetched, err := storage.GetCalendar(ctx, "cal-1")
		if err != nil {
			t.Fatalf("GetCalendar failed: %v", err)
		}
		if len(fetched.Members) != 1 || fetched.Members[0].Role != "editor" {
			t.Fatalf("failed save must leave members untouched, got %#v", fetched.Members)
		}
	})

	t.Run("lists owned and shared calendars", func(t *testing.T) {
		other := persistence.Calendar{ID: "cal-2", OwnerID: "carol", Name: "Private", Color: "#000000", CreatedAt: baseTime.Add(time.Minute), UpdatedAt: baseTime}
		if err := storage.CreateCalendar(ctx, other); err != nil {
			t.Fatalf("CreateCalendar failed: %v", err)
		}

		bobs, err := storage.ListCalendarsForUser(ctx, "bob")
		if err != nil {
			t.Fatalf("ListCalendarsForUser failed: %v", err)
		}
		if len(bobs) != 1 || bobs[0].ID != "cal-1" || len(bobs[0].Members) != 1 {
			t.Fatalf("unexpected calendars for bob: %#v", bobs)
		}

		carols, err := storage.ListCalendarsForUser(ctx, "carol")
		if err != nil {
			t.Fatalf("ListCalendarsForUser failed: %v", err)
		}
		if len(carols) != 1 || carols[0].ID != "cal-2" {
			t.Fatalf("unexpected calendars for carol: %#v", carols)
		}
	})

	t.Run("delete cascades to events and invites", func(t *testing.T) {
		expires := baseTime.Add(time.Hour)
		if err := storage.CreateInvite(ctx, persistence.Invite{
			ID: "inv-1", CalendarID: "cal-1", Email: "dan@example.com", Role: "viewer", Token: "tok-1",
			Status: "pending", ExpiresAt: &expires, InvitedBy: "owner", CreatedAt: baseTime, UpdatedAt: baseTime,
		}); err != nil {
			t.Fatalf("CreateInvite failed: %v", err)
		}
		if err := storage.CreateEvent(ctx, persistence.Event{
			ID: "evt-1", CalendarID: "cal-1", OwnerID: "owner", Type: "arrangement", Title: "Standup",
			Start: baseTime, End: baseTime.Add(time.Hour), CreatedAt: baseTime, UpdatedAt: baseTime,
		}); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}

		if err := storage.DeleteCalendar(ctx, "cal-1"); err != nil {
			t.Fatalf("DeleteCalendar failed: %v", err)
		}
		if _, err := storage.GetCalendar(ctx, "cal-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := storage.GetInvite(ctx, "inv-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected invite to be deleted, got %v", err)
		}
		if _, err := storage.GetEvent(ctx, "evt-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected event to be deleted, got %v", err)
		}
		if err := storage.DeleteCalendar(ctx, "cal-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}
