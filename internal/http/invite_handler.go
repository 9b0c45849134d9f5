package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/calshare/internal/application"
)

type inviteService interface {
	InviteMember(ctx context.Context, params application.InviteMemberParams) (application.InviteResult, error)
	AcceptInvite(ctx context.Context, principal application.Principal, token string) (application.AcceptResult, error)
	DeclineInvite(ctx context.Context, principal application.Principal, token string) error
	PreviewInvite(ctx context.Context, principal application.Principal, token string) (application.InvitePreview, error)
	CancelInvite(ctx context.Context, principal application.Principal, inviteID string) error
	ListInvites(ctx context.Context, principal application.Principal, calendarID string) ([]application.Invite, error)
}

// InviteHandler serves invite issuing, listing and the invitee-facing token routes.
type InviteHandler struct {
	service      inviteService
	links        application.InviteLinkBuilder
	exposeTokens bool
	responder    responder
	logger       *slog.Logger
}

// InviteHandlerOptions configures NewInviteHandler. ExposeTokens returns the raw
// token and accept URL of pending invites in create and list responses, for
// deployments without e-mail.
type InviteHandlerOptions struct {
	Links        application.InviteLinkBuilder
	ExposeTokens bool
	Logger       *slog.Logger
}

func NewInviteHandler(service inviteService, opts InviteHandlerOptions) *InviteHandler {
	base := defaultLogger(opts.Logger)
	return &InviteHandler{
		service:      service,
		links:        opts.Links,
		exposeTokens: opts.ExposeTokens,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	calendarID := pathValue(r, "id")
	if calendarID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCalendarID)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.InviteMember(r.Context(), application.InviteMemberParams{
		Principal:  principal,
		CalendarID: calendarID,
		Email:      req.Email,
		Role:       req.Role,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if result.Reissued {
		status = http.StatusOK
	}
	dto := h.toInviteDTO(result.Invite)
	dto.Reissued = result.Reissued
	h.responder.writeJSON(r.Context(), w, status, dto)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
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
	invites, err := h.service.ListInvites(r.Context(), principal, calendarID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]inviteDTO, 0, len(invites))
	for _, invite := range invites {
		out = append(out, h.toInviteDTO(invite))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listInvitesResponse{Invites: out})
}

func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := pathValue(r, "token")
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInviteToken)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	preview, err := h.service.PreviewInvite(r.Context(), principal, token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, invitePreviewDTO{
		InviteID:      preview.InviteID,
		CalendarID:    preview.CalendarID,
		CalendarName:  preview.CalendarName,
		Email:         preview.Email,
		Role:          preview.Role.String(),
		Status:        string(preview.Status),
		ExpiresAt:     formatTimePtr(preview.ExpiresAt),
		InvitedByName: preview.InvitedByName,
	})
}

func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := pathValue(r, "token")
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInviteToken)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.AcceptInvite(r.Context(), principal, token)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "InviteHandler", "Accept", "calendar_id", result.CalendarID).
		InfoContext(r.Context(), "invite accepted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, acceptResponse{CalendarID: result.CalendarID, Role: result.Role.String()})
}

func (h *InviteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token := pathValue(r, "token")
	if token == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInviteToken)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeclineInvite(r.Context(), principal, token); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InviteHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	inviteID := pathValue(r, "inviteID")
	if inviteID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInviteToken)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.CancelInvite(r.Context(), principal, inviteID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// toInviteDTO includes the token and accept URL of pending invites when
// tokens are exposed. Settled invites never carry them.
func (h *InviteHandler) toInviteDTO(invite application.Invite) inviteDTO {
	dto := inviteDTO{
		ID:         invite.ID,
		CalendarID: invite.CalendarID,
		Email:      invite.Email,
		Role:       invite.Role.String(),
		Status:     string(invite.Status),
		ExpiresAt:  formatTimePtr(invite.ExpiresAt),
		InvitedBy:  invite.InvitedBy,
		CreatedAt:  invite.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if h.exposeTokens && invite.Status == application.InviteStatusPending && invite.Token != "" {
		dto.Token = invite.Token
		if h.links != nil {
			dto.AcceptURL = h.links.InviteLink(invite.Token)
		}
	}
	return dto
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type listInvitesResponse struct {
	Invites []inviteDTO `json:"invites"`
}

type inviteDTO struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendar_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	InvitedBy  string `json:"invited_by"`
	CreatedAt  string `json:"created_at"`
	Reissued   bool   `json:"reissued,omitempty"`
	Token      string `json:"token,omitempty"`
	AcceptURL  string `json:"accept_url,omitempty"`
}

type invitePreviewDTO struct {
	InviteID      string `json:"invite_id"`
	CalendarID    string `json:"calendar_id"`
	CalendarName  string `json:"calendar_name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	InvitedByName string `json:"invited_by_name,omitempty"`
}

type acceptResponse struct {
	CalendarID string `json:"calendar_id"`
	Role       string `json:"role"`
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
