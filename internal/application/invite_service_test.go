package application

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

type inviteFixture struct {
	svc       *InviteService
	calendars *calendarRepositoryStub
	invites   *inviteRepositoryStub
	notifier  *notifierStub
	observer  *observerStub
	tasks     *taskRunnerStub
	clock     *time.Time
}

func newInviteFixture(invites ...Invite) *inviteFixture {
	now := testNow
	f := &inviteFixture{
		calendars: newCalendarRepositoryStub(teamCalendar()),
		invites:   newInviteRepositoryStub(invites...),
		notifier:  &notifierStub{},
		observer:  &observerStub{},
		tasks:     &taskRunnerStub{},
		clock:     &now,
	}
	users := newUserDirectoryStub(
		User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
		User{ID: "bob", Email: "bob@example.com", DisplayName: "Bob"},
	)
	f.svc = NewInviteService(InviteServiceDeps{
		Invites:     f.invites,
		Calendars:   f.calendars,
		Users:       users,
		Access:      NewAccessControl(f.calendars, f.observer, nil),
		Notifier:    f.notifier,
		Links:       linkBuilderStub{},
		Tasks:       f.tasks,
		Tokens:      tokenSequence("token"),
		IDGenerator: sequence("invite"),
		Now:         func() time.Time { return *f.clock },
		Observer:    f.observer,
	})
	return f
}

func pendingInvite(id, token, email string, expiresAt time.Time) Invite {
	return Invite{
		ID:         id,
		CalendarID: "cal-1",
		Email:      email,
		Role:       RoleEditor,
		Token:      token,
		Status:     InviteStatusPending,
		ExpiresAt:  &expiresAt,
		InvitedBy:  "alice",
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func TestNewInviteToken(t *testing.T) {
	t.Parallel()

	first, err := NewInviteToken()
	if err != nil {
		t.Fatalf("NewInviteToken failed: %v", err)
	}
	second, _ := NewInviteToken()
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("expected base64url token: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(raw))
	}
}

func TestInviteService_InviteMember(t *testing.T) {
	t.Parallel()

	t.Run("issues a pending invite and notifies asynchronously", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		result, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal:  Principal{UserID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
			CalendarID: "cal-1",
			Email:      " Erin@Example.com ",
		})
		if err != nil {
			t.Fatalf("InviteMember failed: %v", err)
		}
		if result.Reissued {
			t.Fatalf("expected a fresh invite")
		}
		inv := result.Invite
		if inv.Email != "erin@example.com" || inv.Role != RoleViewer || inv.Status != InviteStatusPending {
			t.Fatalf("unexpected invite: %#v", inv)
		}
		if inv.ExpiresAt == nil || !inv.ExpiresAt.Equal(testNow.Add(DefaultInviteTTL)) {
			t.Fatalf("expected expiry now+7d, got %v", inv.ExpiresAt)
		}

		sent := f.notifier.notifications()
		if len(sent) != 1 {
			t.Fatalf("expected one notification, got %d", len(sent))
		}
		if sent[0].AcceptURL != "https://cal.example.com/invite/"+inv.Token || sent[0].CalendarName != "Team" {
			t.Fatalf("unexpected notification: %#v", sent[0])
		}
		if len(f.tasks.names) != 1 || f.tasks.names[0] != "invite-notification" {
			t.Fatalf("expected notification to run through the task runner, got %v", f.tasks.names)
		}
		if f.observer.issued != 1 {
			t.Fatalf("expected issued observation, got %d", f.observer.issued)
		}
	})

	t.Run("notification context survives request cancellation", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		ctx, cancel := context.WithCancel(context.Background())
		if _, err := f.svc.InviteMember(ctx, InviteMemberParams{
			Principal: Principal{UserID: "alice"}, CalendarID: "cal-1", Email: "erin@example.com",
		}); err != nil {
			t.Fatalf("InviteMember failed: %v", err)
		}
		cancel()
		if err := f.tasks.contexts[0].Err(); err != nil {
			t.Fatalf("expected detached context, got %v", err)
		}
	})

	t.Run("re-invite rotates the pending record in place", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		first, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "alice"}, CalendarID: "cal-1", Email: "erin@example.com", Role: "viewer",
		})
		if err != nil {
			t.Fatalf("first InviteMember failed: %v", err)
		}

		*f.clock = testNow.Add(48 * time.Hour)
		second, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "bob"}, CalendarID: "cal-1", Email: "erin@example.com", Role: "admin",
		})
		if err != nil {
			t.Fatalf("second InviteMember failed: %v", err)
		}

		if !second.Reissued || second.Invite.ID != first.Invite.ID {
			t.Fatalf("expected the same record to be reissued, got %#v", second)
		}
		if f.invites.count() != 1 {
			t.Fatalf("expected exactly one invite, got %d", f.invites.count())
		}
		stored := f.invites.get(first.Invite.ID)
		if stored.Token == first.Invite.Token || stored.Role != RoleAdmin || stored.InvitedBy != "bob" {
			t.Fatalf("expected rotated token, role and inviter, got %#v", stored)
		}
		if !stored.ExpiresAt.Equal(testNow.Add(48*time.Hour + DefaultInviteTTL)) {
			t.Fatalf("expected refreshed expiry, got %v", stored.ExpiresAt)
		}
		if _, err := f.invites.GetInviteByToken(context.Background(), first.Invite.Token); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected old token to stop resolving, got %v", err)
		}
	})

	t.Run("notification failures do not fail the request", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		f.notifier.err = errors.New("smtp down")
		if _, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "alice"}, CalendarID: "cal-1", Email: "erin@example.com",
		}); err != nil {
			t.Fatalf("expected success despite notifier failure, got %v", err)
		}
		if f.observer.notifyFailure != 1 {
			t.Fatalf("expected failure to be observed, got %d", f.observer.notifyFailure)
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		_, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "carol"}, CalendarID: "cal-1", Email: "erin@example.com",
		})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if f.invites.count() != 0 {
			t.Fatalf("expected no invite to be written")
		}
	})

	t.Run("validates email and role", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		_, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "alice"}, CalendarID: "cal-1", Email: "not-an-email", Role: "owner",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if vErr.FieldErrors["email"] == "" || vErr.FieldErrors["role"] == "" {
			t.Fatalf("expected email and role errors, got %#v", vErr.FieldErrors)
		}

		for _, email := range []string{"Adam <adam@example.com>", "<adam@example.com>", "adam@example.com (Adam)"} {
			_, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
				Principal: Principal{UserID: "alice"}, CalendarID: "cal-1", Email: email, Role: "viewer",
			})
			if !errors.As(err, &vErr) || vErr.FieldErrors["email"] != "email is invalid" {
				t.Fatalf("expected %q to be rejected as invalid, got %v", email, err)
			}
		}
	})

	t.Run("inviting the owner is an invalid operation", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		_, err := f.svc.InviteMember(context.Background(), InviteMemberParams{
			Principal: Principal{UserID: "bob"}, CalendarID: "cal-1", Email: "ALICE@example.com",
		})
		if !errors.Is(err, ErrInvalidOperation) {
			t.Fatalf("expected ErrInvalidOperation, got %v", err)
		}
	})
}

func TestInviteService_AcceptInvite(t *testing.T) {
	t.Parallel()

	erin := Principal{UserID: "erin", Email: "erin@example.com"}

	t.Run("adds the invitee as a member and marks the invite accepted", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		result, err := f.svc.AcceptInvite(context.Background(), erin, "tok")
		if err != nil {
			t.Fatalf("AcceptInvite failed: %v", err)
		}
		if result.CalendarID != "cal-1" || result.Role != RoleEditor {
			t.Fatalf("unexpected result: %#v", result)
		}

		cal := f.calendars.get("cal-1")
		idx := cal.MemberIndex("erin")
		if idx < 0 || cal.Members[idx].Role != RoleEditor || !cal.Members[idx].AddedAt.Equal(testNow) {
			t.Fatalf("expected erin as editor, got %#v", cal.Members)
		}
		stored := f.invites.get("inv-1")
		if stored.Status != InviteStatusAccepted || stored.InvitedUserID == nil || *stored.InvitedUserID != "erin" {
			t.Fatalf("unexpected stored invite: %#v", stored)
		}
	})

	t.Run("replaying an accept is idempotent and writes nothing", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		first, err := f.svc.AcceptInvite(context.Background(), erin, "tok")
		if err != nil {
			t.Fatalf("AcceptInvite failed: %v", err)
		}
		calendarWrites, inviteWrites := f.calendars.saveCalls, f.invites.saveCalls

		second, err := f.svc.AcceptInvite(context.Background(), erin, "tok")
		if err != nil {
			t.Fatalf("replayed AcceptInvite failed: %v", err)
		}
		if second != first {
			t.Fatalf("expected identical results, got %#v and %#v", first, second)
		}
		if f.calendars.saveCalls != calendarWrites || f.invites.saveCalls != inviteWrites {
			t.Fatalf("expected no writes on replay")
		}
		if n := len(f.calendars.get("cal-1").Members); n != 4 {
			t.Fatalf("expected 4 members, got %d", n)
		}
	})

	t.Run("existing members have their role overwritten", func(t *testing.T) {
		t.Parallel()

		inv := pendingInvite("inv-1", "tok", "dave@example.com", testNow.Add(time.Hour))
		inv.Role = RoleAdmin
		f := newInviteFixture(inv)
		if _, err := f.svc.AcceptInvite(context.Background(), Principal{UserID: "dave", Email: "dave@example.com"}, "tok"); err != nil {
			t.Fatalf("AcceptInvite failed: %v", err)
		}
		cal := f.calendars.get("cal-1")
		if len(cal.Members) != 3 || cal.Members[cal.MemberIndex("dave")].Role != RoleAdmin {
			t.Fatalf("expected dave upgraded in place, got %#v", cal.Members)
		}
	})

	t.Run("unknown tokens are not found", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		if _, err := f.svc.AcceptInvite(context.Background(), erin, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expired invites are gone and then invalid state", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(-time.Minute)))
		if _, err := f.svc.AcceptInvite(context.Background(), erin, "tok"); !errors.Is(err, ErrGone) {
			t.Fatalf("expected ErrGone, got %v", err)
		}
		if got := f.invites.get("inv-1").Status; got != InviteStatusExpired {
			t.Fatalf("expected persisted expired status, got %q", got)
		}
		if f.observer.expired != 1 {
			t.Fatalf("expected expiry observation")
		}

		_, err := f.svc.AcceptInvite(context.Background(), erin, "tok")
		var stateErr *InvalidStateError
		if !errors.As(err, &stateErr) || stateErr.Status != InviteStatusExpired || !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected InvalidStateError(expired), got %v", err)
		}
		if f.calendars.get("cal-1").MemberIndex("erin") >= 0 {
			t.Fatalf("expected no membership from an expired invite")
		}
	})

	t.Run("someone else's accepted invite is invalid state", func(t *testing.T) {
		t.Parallel()

		inv := pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour))
		other := "someone"
		inv.Status = InviteStatusAccepted
		inv.InvitedUserID = &other
		f := newInviteFixture(inv)
		if _, err := f.svc.AcceptInvite(context.Background(), erin, "tok"); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("e-mail mismatch is forbidden", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		_, err := f.svc.AcceptInvite(context.Background(), Principal{UserID: "mallory", Email: "mallory@example.com"}, "tok")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if f.invites.get("inv-1").Status != InviteStatusPending {
			t.Fatalf("expected invite to remain pending")
		}
	})

	t.Run("e-mail comparison is case-insensitive", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		if _, err := f.svc.AcceptInvite(context.Background(), Principal{UserID: "erin", Email: "ERIN@Example.com"}, "tok"); err != nil {
			t.Fatalf("AcceptInvite failed: %v", err)
		}
	})

	t.Run("the owner cannot accept into their own calendar", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "alice@example.com", testNow.Add(time.Hour)))
		_, err := f.svc.AcceptInvite(context.Background(), Principal{UserID: "alice", Email: "alice@example.com"}, "tok")
		if !errors.Is(err, ErrInvalidOperation) {
			t.Fatalf("expected ErrInvalidOperation, got %v", err)
		}
		if f.calendars.get("cal-1").MemberIndex("alice") >= 0 {
			t.Fatalf("owner must never become a member")
		}
	})
}

func TestInviteService_DeclineInvite(t *testing.T) {
	t.Parallel()

	t.Run("marks pending invites declined", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		if err := f.svc.DeclineInvite(context.Background(), Principal{UserID: "erin", Email: "erin@example.com"}, "tok"); err != nil {
			t.Fatalf("DeclineInvite failed: %v", err)
		}
		if got := f.invites.get("inv-1").Status; got != InviteStatusDeclined {
			t.Fatalf("expected declined, got %q", got)
		}
	})

	t.Run("declined invites cannot be accepted", func(t *testing.T) {
		t.Parallel()

		inv := pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour))
		inv.Status = InviteStatusDeclined
		f := newInviteFixture(inv)
		if _, err := f.svc.AcceptInvite(context.Background(), Principal{UserID: "erin", Email: "erin@example.com"}, "tok"); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestInviteService_PreviewInvite(t *testing.T) {
	t.Parallel()

	t.Run("shows calendar details without the token", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		preview, err := f.svc.PreviewInvite(context.Background(), Principal{UserID: "erin", Email: "erin@example.com"}, "tok")
		if err != nil {
			t.Fatalf("PreviewInvite failed: %v", err)
		}
		if preview.CalendarName != "Team" || preview.Role != RoleEditor || preview.InvitedByName != "Alice" {
			t.Fatalf("unexpected preview: %#v", preview)
		}
	})

	t.Run("reports lazily expired status", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(-time.Hour)))
		preview, err := f.svc.PreviewInvite(context.Background(), Principal{UserID: "erin", Email: "erin@example.com"}, "tok")
		if err != nil {
			t.Fatalf("PreviewInvite failed: %v", err)
		}
		if preview.Status != InviteStatusExpired || f.invites.get("inv-1").Status != InviteStatusExpired {
			t.Fatalf("expected expired preview and persisted status, got %#v", preview)
		}
	})

	t.Run("hides invites addressed to someone else", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		if _, err := f.svc.PreviewInvite(context.Background(), Principal{UserID: "x", Email: "x@example.com"}, "tok"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestInviteService_CancelInvite(t *testing.T) {
	t.Parallel()

	t.Run("admins delete pending invites", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		if err := f.svc.CancelInvite(context.Background(), Principal{UserID: "bob"}, "inv-1"); err != nil {
			t.Fatalf("CancelInvite failed: %v", err)
		}
		if f.invites.count() != 0 {
			t.Fatalf("expected invite to be deleted")
		}
	})

	t.Run("non-admins are forbidden", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(time.Hour)))
		if err := f.svc.CancelInvite(context.Background(), Principal{UserID: "carol"}, "inv-1"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("expired invites cannot be cancelled", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(pendingInvite("inv-1", "tok", "erin@example.com", testNow.Add(-time.Hour)))
		if err := f.svc.CancelInvite(context.Background(), Principal{UserID: "alice"}, "inv-1"); !errors.Is(err, ErrInvalidOperation) {
			t.Fatalf("expected ErrInvalidOperation, got %v", err)
		}
		if got := f.invites.get("inv-1").Status; got != InviteStatusExpired {
			t.Fatalf("expected status persisted as expired, got %q", got)
		}
	})

	t.Run("unknown invites are not found", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture()
		if err := f.svc.CancelInvite(context.Background(), Principal{UserID: "alice"}, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestInviteService_ListInvites(t *testing.T) {
	t.Parallel()

	stale := pendingInvite("inv-old", "tok-old", "old@example.com", testNow.Add(-time.Hour))
	fresh := pendingInvite("inv-new", "tok-new", "new@example.com", testNow.Add(time.Hour))
	fresh.CreatedAt = testNow.Add(time.Minute)

	t.Run("returns newest first and expires stale invites", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(stale, fresh)
		invites, err := f.svc.ListInvites(context.Background(), Principal{UserID: "alice"}, "cal-1")
		if err != nil {
			t.Fatalf("ListInvites failed: %v", err)
		}
		if len(invites) != 2 || invites[0].ID != "inv-new" {
			t.Fatalf("unexpected ordering: %#v", invites)
		}
		if invites[1].Status != InviteStatusExpired || f.invites.get("inv-old").Status != InviteStatusExpired {
			t.Fatalf("expected stale invite to be expired and persisted")
		}
		if invites[0].Status != InviteStatusPending {
			t.Fatalf("expected fresh invite to stay pending")
		}
	})

	t.Run("viewers are forbidden", func(t *testing.T) {
		t.Parallel()

		f := newInviteFixture(stale, fresh)
		if _, err := f.svc.ListInvites(context.Background(), Principal{UserID: "dave"}, "cal-1"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}
