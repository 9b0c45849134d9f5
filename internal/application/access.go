package application

import (
	"context"
	"fmt"
	"log/slog"
)

// CalendarRepository captures the persistence operations needed for calendars and their members.
type CalendarRepository interface {
	CreateCalendar(ctx context.Context, calendar Calendar) (Calendar, error)
	GetCalendar(ctx context.Context, id string) (Calendar, error)
	SaveCalendar(ctx context.Context, calendar Calendar) (Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
	ListCalendarsForUser(ctx context.Context, userID string) ([]Calendar, error)
}

// AccessControl resolves a user's role on a calendar and gates operations on it.
// It holds no mutable state and is safe for concurrent use.
type AccessControl struct {
	calendars CalendarRepository
	observer  Observer
	logger    *slog.Logger
}

// NewAccessControl constructs an AccessControl backed by the calendar repository.
func NewAccessControl(calendars CalendarRepository, observer Observer, logger *slog.Logger) *AccessControl {
	return &AccessControl{
		calendars: calendars,
		observer:  defaultObserver(observer),
		logger:    defaultLogger(logger),
	}
}

// ResolveRole determines userID's role on the calendar. Ownership is checked
// before the member list, so an owner resolves to RoleOwner even if a stale
// member row exists.
func (a *AccessControl) ResolveRole(ctx context.Context, calendarID, userID string) (RoleResolution, error) {
	if a == nil {
		return RoleResolution{}, fmt.Errorf("AccessControl is nil")
	}
	if a.calendars == nil {
		return RoleResolution{}, fmt.Errorf("calendar repository not configured")
	}
	if calendarID == "" {
		return RoleResolution{}, ErrNotFound
	}

	calendar, err := a.calendars.GetCalendar(ctx, calendarID)
	if err != nil {
		return RoleResolution{}, err
	}
	return RoleResolution{Calendar: calendar, Role: roleOf(calendar, userID)}, nil
}

// RequireRole passes when userID owns the calendar or holds one of allowed.
// With no allowed roles it is an owner-only check.
func (a *AccessControl) RequireRole(ctx context.Context, calendarID, userID string, allowed ...Role) (Calendar, error) {
	resolution, err := a.ResolveRole(ctx, calendarID, userID)
	if err != nil {
		return Calendar{}, err
	}
	if err := a.authorize(ctx, resolution, userID, allowed); err != nil {
		return Calendar{}, err
	}
	return resolution.Calendar, nil
}

// RequireRelationship passes for any non-none role.
func (a *AccessControl) RequireRelationship(ctx context.Context, calendarID, userID string) (Calendar, error) {
	return a.RequireRole(ctx, calendarID, userID, readRoles...)
}

func (a *AccessControl) authorize(ctx context.Context, resolution RoleResolution, userID string, allowed []Role) error {
	if roleAllowed(resolution.Role, allowed) {
		return nil
	}
	a.observer.AccessDenied(resolution.Role)
	serviceLogger(ctx, a.logger, "AccessControl", "RequireRole",
		"calendar_id", resolution.Calendar.ID,
		"principal_id", userID,
		"role", resolution.Role.String(),
	).WarnContext(ctx, "access denied")
	return ErrForbidden
}

func roleOf(calendar Calendar, userID string) Role {
	if calendar.IsOwner(userID) {
		return RoleOwner
	}
	if idx := calendar.MemberIndex(userID); idx >= 0 && userID != "" {
		return calendar.Members[idx].Role
	}
	return RoleNone
}
