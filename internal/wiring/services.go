package wiring

import (
	"log/slog"
	"time"

	"github.com/example/calshare/internal/application"
	"github.com/example/calshare/internal/persistence"
)

// Store is the full persistence surface. *sqlite.Storage satisfies it.
type Store interface {
	persistence.UserRepository
	persistence.SessionRepository
	persistence.CalendarRepository
	persistence.InviteRepository
	persistence.EventRepository
}

// Options carries the collaborators that differ between the server and tests.
type Options struct {
	Store    Store
	Notifier application.InviteNotifier
	Links    application.InviteLinkBuilder
	Tasks    application.TaskRunner
	Exporter application.CalendarExporter
	Observer application.Observer

	IDGenerator    func() string
	SessionTokens  func() string
	InviteTokens   func() (string, error)
	PasswordHasher application.PasswordHasher
	PasswordVerify application.PasswordVerifier
	Now            func() time.Time

	SessionTTL time.Duration
	InviteTTL  time.Duration
	Logger     *slog.Logger
}

// Services is every application service wired over one Store.
type Services struct {
	Access      *application.AccessControl
	Calendars   *application.CalendarService
	Members     *application.MembershipService
	Invites     *application.InviteService
	Events      *application.EventService
	Users       *application.UserService
	Auth        *application.AuthService
	UserStore   *UserStore
	SessionRepo *SessionStore
}

// NewServices builds the service graph. Calendar, membership, invite and event
// services share a single AccessControl so every gate reports to one observer.
func NewServices(opts Options) *Services {
	users := NewUserStore(opts.Store)
	calendars := NewCalendarStore(opts.Store)
	sessions := NewSessionStore(opts.Store)

	access := application.NewAccessControl(calendars, opts.Observer, opts.Logger)
	calendarSvc := application.NewCalendarServiceWithLogger(calendars, access, opts.IDGenerator, opts.Now, opts.Logger)

	return &Services{
		Access:    access,
		Calendars: calendarSvc,
		Members:   application.NewMembershipServiceWithLogger(calendars, users, access, opts.Now, opts.Logger),
		Invites: application.NewInviteService(application.InviteServiceDeps{
			Invites:     NewInviteStore(opts.Store),
			Calendars:   calendars,
			Users:       users,
			Access:      access,
			Notifier:    opts.Notifier,
			Links:       opts.Links,
			Tasks:       opts.Tasks,
			Tokens:      opts.InviteTokens,
			IDGenerator: opts.IDGenerator,
			Now:         opts.Now,
			TTL:         opts.InviteTTL,
			Observer:    opts.Observer,
			Logger:      opts.Logger,
		}),
		Events:      application.NewEventServiceWithLogger(NewEventStore(opts.Store), calendars, access, opts.Exporter, opts.IDGenerator, opts.Now, opts.Logger),
		Users:       application.NewUserServiceWithLogger(users, calendarSvc, opts.PasswordHasher, opts.IDGenerator, opts.Now, opts.Logger),
		Auth:        application.NewAuthServiceWithLogger(users, sessions, opts.PasswordVerify, opts.SessionTokens, opts.Now, opts.SessionTTL, opts.Logger),
		UserStore:   users,
		SessionRepo: sessions,
	}
}
