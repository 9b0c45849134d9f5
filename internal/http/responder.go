package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/calshare/internal/application"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidCalendarID   = errors.New("無効なカレンダー ID です。")
	errInvalidEventID      = errors.New("無効な予定 ID です。")
	errInvalidUserID       = errors.New("無効なユーザー ID です。")
	errInvalidInviteToken  = errors.New("無効な招待トークンです。")
	errMissingSessionToken = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError renders an application error with the status its kind maps to.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusBadRequest),
			Errors:    localizeValidationErrors(vErr),
		})
		return
	}

	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}

	message := localizedStatusMessage(status)
	var stateErr *application.InvalidStateError
	if errors.As(err, &stateErr) {
		message = "この招待は既に" + localizedInviteStatus(stateErr.Status) + "です。"
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, application.ErrGone):
		return http.StatusGone, "INVITE_EXPIRED"
	case errors.Is(err, application.ErrInvalidState):
		return http.StatusConflict, "INVITE_INVALID_STATE"
	case errors.Is(err, application.ErrInvalidOperation):
		return http.StatusUnprocessableEntity, "INVALID_OPERATION"
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, "AUTH_SESSION_EXPIRED"
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, "AUTH_SESSION_REVOKED"
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized, "AUTH_REQUIRED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "入力内容に誤りがあります。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusGone:
		return "招待の有効期限が切れています。"
	case http.StatusUnprocessableEntity:
		return "この操作は実行できません。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizedInviteStatus(status application.InviteStatus) string {
	switch status {
	case application.InviteStatusAccepted:
		return "承諾済み"
	case application.InviteStatusDeclined:
		return "辞退済み"
	case application.InviteStatusExpired:
		return "期限切れ"
	default:
		return string(status)
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is invalid":
		return "メールアドレスの形式が不正です。"
	case "display name is required":
		return "表示名は必須です。"
	case "name is required":
		return "カレンダー名は必須です。"
	case "name is too long":
		return "カレンダー名が長すぎます。"
	case "color must be #rgb or #rrggbb":
		return "色は #rgb または #rrggbb 形式で指定してください。"
	case "role is required":
		return "ロールは必須です。"
	case "role must be one of admin, editor, viewer":
		return "ロールは admin、editor、viewer のいずれかを指定してください。"
	case "type must be one of arrangement, reminder, task":
		return "種別は arrangement、reminder、task のいずれかを指定してください。"
	case "title is required":
		return "タイトルは必須です。"
	case "start is required":
		return "開始日時は必須です。"
	case "end is required":
		return "終了日時は必須です。"
	case "end must be after start":
		return "終了日時は開始日時より後である必要があります。"
	case "calendar_id is required", "calendar_id must not be empty":
		return "カレンダー ID は必須です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
