package persistence

import (
	"context"
	"time"
)

// UserRepository stores registered accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]User, error)
}

// CalendarRepository stores calendars as whole documents. SaveCalendar replaces
// the member set atomically.
type CalendarRepository interface {
	CreateCalendar(ctx context.Context, calendar Calendar) error
	GetCalendar(ctx context.Context, id string) (Calendar, error)
	SaveCalendar(ctx context.Context, calendar Calendar) error
	DeleteCalendar(ctx context.Context, id string) error
	ListCalendarsForUser(ctx context.Context, userID string) ([]Calendar, error)
}

// InviteRepository stores calendar invitations.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite Invite) error
	SaveInvite(ctx context.Context, invite Invite) error
	GetInvite(ctx context.Context, id string) (Invite, error)
	GetInviteByToken(ctx context.Context, token string) (Invite, error)
	FindPendingInvite(ctx context.Context, calendarID, email string) (Invite, error)
	ListInvitesForCalendar(ctx context.Context, calendarID string) ([]Invite, error)
	DeleteInvite(ctx context.Context, id string) error
}

// EventFilter narrows event queries to a set of calendars and an overlap window.
type EventFilter struct {
	CalendarIDs []string
	Start       time.Time
	End         time.Time
}

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
