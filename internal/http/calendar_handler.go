package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/calshare/internal/application"
)

type calendarService interface {
	ListCalendars(ctx context.Context, principal application.Principal) ([]application.CalendarView, error)
	CreateCalendar(ctx context.Context, params application.CreateCalendarParams) (application.Calendar, error)
	UpdateCalendar(ctx context.Context, params application.UpdateCalendarParams) (application.Calendar, error)
	DeleteCalendar(ctx context.Context, principal application.Principal, calendarID string) error
}

type CalendarHandler struct {
	service   calendarService
	responder responder
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger)}
}

func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	views, err := h.service.ListCalendars(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]calendarDTO, 0, len(views))
	for _, view := range views {
		out = append(out, toCalendarDTO(view.Calendar, view.Role))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCalendarsResponse{Calendars: out})
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := application.CreateCalendarParams{Principal: principal}
	if req.Name != nil {
		params.Name = *req.Name
	}
	if req.Color != nil {
		params.Color = *req.Color
	}

	calendar, err := h.service.CreateCalendar(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toCalendarDTO(calendar, application.RoleOwner))
}

func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	calendarID := pathValue(r, "id")
	if calendarID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCalendarID)
		return
	}

	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	calendar, err := h.service.UpdateCalendar(r.Context(), application.UpdateCalendarParams{
		Principal:  principal,
		CalendarID: calendarID,
		Name:       req.Name,
		Color:      req.Color,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	role := application.RoleNone
	if calendar.IsOwner(principal.UserID) {
		role = application.RoleOwner
	} else if idx := calendar.MemberIndex(principal.UserID); idx >= 0 {
		role = calendar.Members[idx].Role
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCalendarDTO(calendar, role))
}

func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteCalendar(r.Context(), principal, calendarID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type calendarRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type listCalendarsResponse struct {
	Calendars []calendarDTO `json:"calendars"`
}

type calendarDTO struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toCalendarDTO(calendar application.Calendar, role application.Role) calendarDTO {
	return calendarDTO{
		ID:        calendar.ID,
		OwnerID:   calendar.OwnerID,
		Name:      calendar.Name,
		Color:     calendar.Color,
		Role:      role.String(),
		CreatedAt: calendar.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: calendar.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
