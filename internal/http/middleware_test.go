package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/calshare/internal/application"
)

type sessionValidatorStub struct {
	principal application.Principal
	err       error
	gotToken  string
}

func (s *sessionValidatorStub) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	s.gotToken = token
	if s.err != nil {
		return application.Principal{}, s.err
	}
	return s.principal, nil
}

type observation struct {
	method string
	route  string
	status int
}

type observerStub struct {
	mu   sync.Mutex
	seen []observation
}

func (o *observerStub) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{method: method, route: route, status: status})
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		header         string
		cookie         string
		validatorErr   error
		expectedStatus int
		expectedCode   string
		expectedToken  string
	}{
		{
			name:           "missing credentials",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_REQUIRED",
		},
		{
			name:           "bearer token accepted",
			header:         "Bearer header-token",
			expectedStatus: http.StatusNoContent,
			expectedToken:  "header-token",
		},
		{
			name:           "cookie token accepted",
			cookie:         "cookie-token",
			expectedStatus: http.StatusNoContent,
			expectedToken:  "cookie-token",
		},
		{
			name:           "expired session",
			header:         "Bearer stale",
			validatorErr:   application.ErrSessionExpired,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_SESSION_EXPIRED",
			expectedToken:  "stale",
		},
		{
			name:           "revoked session",
			header:         "Bearer revoked",
			validatorErr:   application.ErrSessionRevoked,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_REQUIRED",
			expectedToken:  "revoked",
		},
		{
			name:           "validator failure",
			header:         "Bearer broken",
			validatorErr:   errors.New("database locked"),
			expectedStatus: http.StatusInternalServerError,
			expectedToken:  "broken",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			validator := &sessionValidatorStub{
				principal: application.Principal{UserID: "user-1", Email: "user@example.com"},
				err:       tt.validatorErr,
			}
			var seen application.Principal
			handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/calendars", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session_token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if validator.gotToken != tt.expectedToken {
				t.Fatalf("expected validator to see %q, got %q", tt.expectedToken, validator.gotToken)
			}
			if tt.expectedStatus == http.StatusNoContent {
				if seen.UserID != "user-1" {
					t.Fatalf("expected principal in context, got %#v", seen)
				}
				return
			}
			if tt.expectedCode != "" {
				var body errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.ErrorCode != tt.expectedCode {
					t.Fatalf("expected error code %q, got %q", tt.expectedCode, body.ErrorCode)
				}
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Errorf("expected request logger in context")
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	t.Run("echoes caller supplied ids", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
			t.Fatalf("expected echoed id, got %q", got)
		}
	})

	t.Run("generates ids when absent", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
			t.Fatalf("expected generated uuid, got %q", got)
		}
	})
}

func TestInstrumentLabelsByRouteTemplate(t *testing.T) {
	t.Parallel()

	observer := &observerStub{}
	router := mux.NewRouter()
	router.Use(Instrument(observer))
	router.HandleFunc("/calendars/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/calendars/cal-123", nil))

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.seen) != 1 {
		t.Fatalf("expected one observation, got %#v", observer.seen)
	}
	got := observer.seen[0]
	if got.route != "/calendars/{id}" || got.status != http.StatusTeapot || got.method != http.MethodGet {
		t.Fatalf("unexpected observation %#v", got)
	}
}

func TestRouterCORS(t *testing.T) {
	t.Parallel()

	handler := NewRouter(RouterConfig{
		Sessions:    &sessionValidatorStub{},
		CORSOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/calendars", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{application.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{application.ErrGone, http.StatusGone, "INVITE_EXPIRED"},
		{application.ErrInvalidOperation, http.StatusUnprocessableEntity, "INVALID_OPERATION"},
		{application.ErrConflict, http.StatusConflict, "CONFLICT"},
		{application.ErrUnauthorized, http.StatusUnauthorized, "AUTH_REQUIRED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		status, code := statusForError(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("statusForError(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
		}
	}
}
