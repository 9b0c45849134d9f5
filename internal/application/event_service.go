package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// defaultArrangementLength is applied when an arrangement is created without an end.
const defaultArrangementLength = 60 * time.Minute

// EventRepository captures the persistence operations needed for events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// CalendarExporter renders a calendar and its events into an interchange document.
type CalendarExporter interface {
	Export(calendar Calendar, events []Event) ([]byte, error)
}

// EventService manages events under the calendar role rules.
type EventService struct {
	events      EventRepository
	calendars   CalendarRepository
	access      *AccessControl
	exporter    CalendarExporter
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for the event service.
func NewEventService(events EventRepository, calendars CalendarRepository, access *AccessControl, exporter CalendarExporter, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, calendars, access, exporter, idGenerator, now, nil)
}

// NewEventServiceWithLogger wires dependencies for the event service with a logger.
func NewEventServiceWithLogger(events EventRepository, calendars CalendarRepository, access *AccessControl, exporter CalendarExporter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if access == nil {
		access = NewAccessControl(calendars, nil, logger)
	}
	return &EventService{
		events:      events,
		calendars:   calendars,
		access:      access,
		exporter:    exporter,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// ListEvents returns events overlapping [Start, End) ordered by start.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil || s.calendars == nil {
		err = fmt.Errorf("event service repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "listed events", "count", len(events))
	}()

	vErr := &ValidationError{}
	if params.Start == nil {
		vErr.add("start", "start is required")
	}
	if params.End == nil {
		vErr.add("end", "end is required")
	}
	if params.Start != nil && params.End != nil && !params.End.After(*params.Start) {
		vErr.add("end", "end must be after start")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var calendarIDs []string
	calendarIDs, err = s.visibleCalendarIDs(ctx, params.Principal, params.CalendarIDs)
	if err != nil {
		return
	}
	if len(calendarIDs) == 0 {
		events = []Event{}
		return
	}

	events, err = s.events.ListEvents(ctx, EventFilter{
		CalendarIDs: calendarIDs,
		Start:       *params.Start,
		End:         *params.End,
	})
	return
}

func (s *EventService) visibleCalendarIDs(ctx context.Context, principal Principal, requested []string) ([]string, error) {
	if len(requested) == 0 {
		calendars, err := s.calendars.ListCalendarsForUser(ctx, principal.UserID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(calendars))
		for _, c := range calendars {
			if roleOf(c, principal.UserID) != RoleNone {
				ids = append(ids, c.ID)
			}
		}
		return ids, nil
	}

	seen := make(map[string]struct{}, len(requested))
	ids := make([]string, 0, len(requested))
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.access.RequireRelationship(ctx, id, principal.UserID); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateEvent adds an event to a calendar the principal may edit.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID, "calendar_id", event.CalendarID).InfoContext(ctx, "event created")
	}()

	input := params.Input
	calendarID := ""
	if input.CalendarID != nil {
		calendarID = strings.TrimSpace(*input.CalendarID)
	}
	if calendarID == "" {
		err = fieldError("calendar_id", "calendar_id is required")
		return
	}

	if _, err = s.access.RequireRole(ctx, calendarID, params.Principal.UserID, ManageEventsRoles...); err != nil {
		return
	}

	now := s.now()
	candidate := Event{
		ID:         s.idGenerator(),
		CalendarID: calendarID,
		OwnerID:    params.Principal.UserID,
		Type:       EventTypeArrangement,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = applyEventInput(&candidate, input); err != nil {
		return
	}
	if err = normalizeEvent(&candidate, now); err != nil {
		return
	}

	event, err = s.events.CreateEvent(ctx, candidate)
	return
}

// UpdateEvent merges the supplied fields into an event. Moving the event to
// another calendar requires edit rights on both calendars.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated", "calendar_id", event.CalendarID)
	}()

	var existing Event
	existing, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return
	}
	if _, err = s.access.RequireRole(ctx, existing.CalendarID, params.Principal.UserID, ManageEventsRoles...); err != nil {
		return
	}

	input := params.Input
	if input.CalendarID != nil {
		target := strings.TrimSpace(*input.CalendarID)
		if target == "" {
			err = fieldError("calendar_id", "calendar_id must not be empty")
			return
		}
		if target != existing.CalendarID {
			if _, err = s.access.RequireRole(ctx, target, params.Principal.UserID, ManageEventsRoles...); err != nil {
				return
			}
		}
	}

	merged := existing
	if err = applyEventInput(&merged, input); err != nil {
		return
	}
	if merged.Type == EventTypeArrangement && existing.Type != EventTypeArrangement && input.End == nil {
		merged.End = time.Time{}
	}

	now := s.now()
	if err = normalizeEvent(&merged, now); err != nil {
		return
	}
	merged.UpdatedAt = now

	event, err = s.events.UpdateEvent(ctx, merged)
	return
}

// DeleteEvent removes an event from a calendar the principal may edit.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	var existing Event
	existing, err = s.events.GetEvent(ctx, eventID)
	if err != nil {
		return
	}
	if _, err = s.access.RequireRole(ctx, existing.CalendarID, principal.UserID, ManageEventsRoles...); err != nil {
		return
	}
	err = s.events.DeleteEvent(ctx, eventID)
	return
}

// ExportCalendar renders every event of a readable calendar.
func (s *EventService) ExportCalendar(ctx context.Context, principal Principal, calendarID string) (document []byte, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil || s.exporter == nil {
		err = fmt.Errorf("calendar export not configured")
		return
	}

	logger := s.loggerWith(ctx, "ExportCalendar", "principal_id", principal.UserID, "calendar_id", calendarID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to export calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "calendar exported", "bytes", len(document))
	}()

	var calendar Calendar
	calendar, err = s.access.RequireRelationship(ctx, calendarID, principal.UserID)
	if err != nil {
		return
	}

	var events []Event
	events, err = s.events.ListEvents(ctx, EventFilter{CalendarIDs: []string{calendar.ID}})
	if err != nil {
		return
	}
	document, err = s.exporter.Export(calendar, events)
	return
}

// ParseEventType validates a caller supplied event type; empty means arrangement.
func ParseEventType(value string) (EventType, error) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(value))); t {
	case "":
		return EventTypeArrangement, nil
	case EventTypeArrangement, EventTypeReminder, EventTypeTask:
		return t, nil
	}
	return "", fieldError("type", "type must be one of arrangement, reminder, task")
}

func applyEventInput(event *Event, input EventInput) error {
	vErr := &ValidationError{}

	if input.CalendarID != nil {
		event.CalendarID = strings.TrimSpace(*input.CalendarID)
	}
	if input.Type != nil {
		t, err := ParseEventType(*input.Type)
		if err != nil {
			vErr.add("type", "type must be one of arrangement, reminder, task")
		} else {
			event.Type = t
		}
	}
	if input.Title != nil {
		event.Title = strings.TrimSpace(*input.Title)
	}
	if input.Start != nil {
		event.Start = input.Start.UTC()
	}
	if input.End != nil {
		event.End = input.End.UTC()
	}
	if input.AllDay != nil {
		event.AllDay = *input.AllDay
	}
	if input.ReminderAt != nil {
		t := input.ReminderAt.UTC()
		event.ReminderAt = &t
	}
	if input.DueDate != nil {
		t := input.DueDate.UTC()
		event.DueDate = &t
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}

	if event.Title == "" {
		vErr.add("title", "title is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// normalizeEvent applies the per-type time rules to a fully merged event.
func normalizeEvent(event *Event, now time.Time) error {
	if event.Start.IsZero() {
		event.Start = now.UTC()
	}

	switch event.Type {
	case EventTypeReminder:
		if event.ReminderAt == nil {
			at := event.Start
			event.ReminderAt = &at
		}
		event.Start = *event.ReminderAt
		event.End = *event.ReminderAt
		event.DueDate = nil
	case EventTypeTask:
		if event.DueDate == nil {
			due := event.Start
			event.DueDate = &due
		}
		event.Start = *event.DueDate
		event.End = *event.DueDate
		event.ReminderAt = nil
	default:
		event.Type = EventTypeArrangement
		if event.End.IsZero() {
			event.End = event.Start.Add(defaultArrangementLength)
		}
		if !event.End.After(event.Start) {
			return fieldError("end", "end must be after start")
		}
		event.ReminderAt = nil
		event.DueDate = nil
	}
	return nil
}
