package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// DefaultCalendarColor is applied when a calendar is created without a color.
const DefaultCalendarColor = "#6c6cff"

// DefaultCalendarName names the calendar created at registration.
const DefaultCalendarName = "Main Calendar"

const maxCalendarNameLength = 120

var calendarColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// CalendarService manages calendars as whole objects.
type CalendarService struct {
	calendars   CalendarRepository
	access      *AccessControl
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalendarService wires dependencies for the calendar service.
func NewCalendarService(calendars CalendarRepository, access *AccessControl, idGenerator func() string, now func() time.Time) *CalendarService {
	return NewCalendarServiceWithLogger(calendars, access, idGenerator, now, nil)
}

// NewCalendarServiceWithLogger wires dependencies for the calendar service with a logger.
func NewCalendarServiceWithLogger(calendars CalendarRepository, access *AccessControl, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CalendarService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if access == nil {
		access = NewAccessControl(calendars, nil, logger)
	}
	return &CalendarService{
		calendars:   calendars,
		access:      access,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}

// ListCalendars returns calendars the principal owns or belongs to, oldest first.
func (s *CalendarService) ListCalendars(ctx context.Context, principal Principal) (views []CalendarView, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}
	if s.calendars == nil {
		err = fmt.Errorf("calendar repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListCalendars", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list calendars", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var calendars []Calendar
	calendars, err = s.calendars.ListCalendarsForUser(ctx, principal.UserID)
	if err != nil {
		return
	}

	views = make([]CalendarView, 0, len(calendars))
	for _, c := range calendars {
		role := roleOf(c, principal.UserID)
		if role == RoleNone {
			continue
		}
		views = append(views, CalendarView{Calendar: c, Role: role})
	}
	return
}

// CreateCalendar creates a calendar owned by the principal.
func (s *CalendarService) CreateCalendar(ctx context.Context, params CreateCalendarParams) (calendar Calendar, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}
	if s.calendars == nil {
		err = fmt.Errorf("calendar repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateCalendar", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar created", "calendar_id", calendar.ID)
	}()

	name := strings.TrimSpace(params.Name)
	color := strings.TrimSpace(params.Color)
	if color == "" {
		color = DefaultCalendarColor
	}
	if vErr := validateCalendarFields(name, color); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	calendar, err = s.calendars.CreateCalendar(ctx, Calendar{
		ID:        s.idGenerator(),
		OwnerID:   params.Principal.UserID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return
}

// CreateDefaultCalendar creates the calendar every new account starts with.
func (s *CalendarService) CreateDefaultCalendar(ctx context.Context, owner Principal) (Calendar, error) {
	return s.CreateCalendar(ctx, CreateCalendarParams{Principal: owner, Name: DefaultCalendarName})
}

// UpdateCalendar renames or recolors a calendar. Requires admin or owner.
func (s *CalendarService) UpdateCalendar(ctx context.Context, params UpdateCalendarParams) (calendar Calendar, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCalendar",
		"principal_id", params.Principal.UserID,
		"calendar_id", params.CalendarID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar updated")
	}()

	calendar, err = s.access.RequireRole(ctx, params.CalendarID, params.Principal.UserID, ManageCalendarRoles...)
	if err != nil {
		return
	}

	if params.Name != nil {
		calendar.Name = strings.TrimSpace(*params.Name)
	}
	if params.Color != nil {
		calendar.Color = strings.TrimSpace(*params.Color)
	}
	if vErr := validateCalendarFields(calendar.Name, calendar.Color); vErr.HasErrors() {
		calendar = Calendar{}
		err = vErr
		return
	}

	calendar.UpdatedAt = s.now()
	calendar, err = s.calendars.SaveCalendar(ctx, calendar)
	return
}

// DeleteCalendar removes a calendar with its events and invites. Owner only.
func (s *CalendarService) DeleteCalendar(ctx context.Context, principal Principal, calendarID string) (err error) {
	if s == nil {
		return fmt.Errorf("CalendarService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteCalendar", "principal_id", principal.UserID, "calendar_id", calendarID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar deleted")
	}()

	if _, err = s.access.RequireRole(ctx, calendarID, principal.UserID); err != nil {
		return
	}
	err = s.calendars.DeleteCalendar(ctx, calendarID)
	return
}

func validateCalendarFields(name, color string) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case len([]rune(name)) > maxCalendarNameLength:
		vErr.add("name", "name is too long")
	}
	if !calendarColorPattern.MatchString(color) {
		vErr.add("color", "color must be #rgb or #rrggbb")
	}
	return vErr
}
