package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/calshare/internal/application"
)

type membershipService interface {
	ListMembers(ctx context.Context, principal application.Principal, calendarID string) ([]application.MemberView, error)
	UpdateMemberRole(ctx context.Context, params application.UpdateMemberRoleParams) (application.MemberRoleResult, error)
	RemoveMember(ctx context.Context, principal application.Principal, calendarID, targetUserID string) error
}

// MemberHandler serves /calendars/{id}/members.
type MemberHandler struct {
	service   membershipService
	responder responder
}

func NewMemberHandler(service membershipService, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{service: service, responder: newResponder(logger)}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
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
	views, err := h.service.ListMembers(r.Context(), principal, calendarID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]memberDTO, 0, len(views))
	for _, view := range views {
		dto := memberDTO{
			UserID:      view.UserID,
			Email:       view.Email,
			DisplayName: view.DisplayName,
			Role:        view.Role.String(),
		}
		if view.AddedAt != nil {
			dto.AddedAt = view.AddedAt.UTC().Format(time.RFC3339Nano)
		}
		out = append(out, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMembersResponse{Members: out})
}

func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	calendarID := pathValue(r, "id")
	if calendarID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCalendarID)
		return
	}
	userID := pathValue(r, "userID")
	if userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.UpdateMemberRole(r.Context(), application.UpdateMemberRoleParams{
		Principal:    principal,
		CalendarID:   calendarID,
		TargetUserID: userID,
		Role:         req.Role,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberDTO{UserID: result.TargetUserID, Role: result.Role.String()})
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	calendarID := pathValue(r, "id")
	userID := pathValue(r, "userID")
	if calendarID == "" || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.RemoveMember(r.Context(), principal, calendarID, userID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type roleRequest struct {
	Role string `json:"role"`
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type memberDTO struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	AddedAt     string `json:"added_at,omitempty"`
}
