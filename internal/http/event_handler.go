package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/calshare/internal/application"
)

type eventService interface {
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	ExportCalendar(ctx context.Context, principal application.Principal, calendarID string) ([]byte, error)
}

type EventHandler struct {
	service   eventService
	responder responder
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger)}
}

// List handles GET /events?start=&end=&calendarId=... .
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, fieldErrs := buildListEventsParams(r.URL.Query(), principal)
	if len(fieldErrs) > 0 {
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusBadRequest),
			Errors:    fieldErrs,
		})
		return
	}

	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: out})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventDTO(event))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := pathValue(r, "id")
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{Principal: principal, EventID: eventID, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := pathValue(r, "id")
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Export streams the calendar as text/calendar.
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	calendarID := pathValue(r, "id")
	if calendarID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCalendarID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	document, err := h.service.ExportCalendar(r.Context(), principal, calendarID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+calendarID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(document); err != nil {
		h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "failed to write calendar export", "error", err)
	}
}

func (h *EventHandler) decodeInput(w http.ResponseWriter, r *http.Request) (application.EventInput, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.EventInput{}, false
	}
	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusBadRequest),
			Errors:    fieldErrs,
		})
		return application.EventInput{}, false
	}
	return input, true
}

type eventRequest struct {
	CalendarID  *string `json:"calendar_id"`
	Type        *string `json:"type"`
	Title       *string `json:"title"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	AllDay      *bool   `json:"all_day"`
	ReminderAt  *string `json:"reminder_at"`
	DueDate     *string `json:"due_date"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

func (r eventRequest) toInput() (application.EventInput, map[string]string) {
	errs := map[string]string{}
	parse := func(field string, value *string) *time.Time {
		if value == nil || strings.TrimSpace(*value) == "" {
			return nil
		}
		ts, ok := parseTime(*value)
		if !ok {
			errs[field] = "日時は RFC 3339 形式で指定してください。"
			return nil
		}
		return &ts
	}

	input := application.EventInput{
		CalendarID:  r.CalendarID,
		Type:        r.Type,
		Title:       r.Title,
		Start:       parse("start", r.Start),
		End:         parse("end", r.End),
		AllDay:      r.AllDay,
		ReminderAt:  parse("reminder_at", r.ReminderAt),
		DueDate:     parse("due_date", r.DueDate),
		Location:    r.Location,
		Description: r.Description,
	}
	if len(errs) == 0 {
		errs = nil
	}
	return input, errs
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func buildListEventsParams(values url.Values, principal application.Principal) (application.ListEventsParams, map[string]string) {
	params := application.ListEventsParams{Principal: principal}
	errs := map[string]string{}

	for _, key := range []string{"start", "end"} {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		ts, ok := parseTime(raw)
		if !ok {
			errs[key] = "日時は RFC 3339 形式で指定してください。"
			continue
		}
		if key == "start" {
			params.Start = &ts
		} else {
			params.End = &ts
		}
	}

	for _, id := range values["calendarId"] {
		for _, part := range strings.Split(id, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				params.CalendarIDs = append(params.CalendarIDs, trimmed)
			}
		}
	}

	if len(errs) == 0 {
		errs = nil
	}
	return params, errs
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendar_id"`
	OwnerID     string `json:"owner_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
	ReminderAt  string `json:"reminder_at,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:          event.ID,
		CalendarID:  event.CalendarID,
		OwnerID:     event.OwnerID,
		Type:        string(event.Type),
		Title:       event.Title,
		Start:       event.Start.UTC().Format(time.RFC3339Nano),
		End:         event.End.UTC().Format(time.RFC3339Nano),
		AllDay:      event.AllDay,
		ReminderAt:  formatTimePtr(event.ReminderAt),
		DueDate:     formatTimePtr(event.DueDate),
		Location:    event.Location,
		Description: event.Description,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
