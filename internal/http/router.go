package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type RouterConfig struct {
	Auth      *AuthHandler
	Calendars *CalendarHandler
	Members   *MemberHandler
	Invites   *InviteHandler
	Events    *EventHandler
	Health    *HealthHandler

	Sessions SessionValidator
	Metrics  http.Handler
	Observer RequestObserver

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter assembles the API. Register, login, health and metrics are public;
// every other route requires a session.
func NewRouter(cfg RouterConfig) http.Handler {
	root := mux.NewRouter()
	root.Use(Instrument(cfg.Observer))

	if cfg.Health != nil {
		root.HandleFunc("/healthz", cfg.Health.Check).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		root.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}
	if cfg.Auth != nil {
		root.HandleFunc("/auth/register", cfg.Auth.Register).Methods(http.MethodPost)
		root.HandleFunc("/auth/sessions", cfg.Auth.CreateSession).Methods(http.MethodPost)
	}

	protected := root.NewRoute().Subrouter()
	if cfg.Sessions != nil {
		protected.Use(RequireSession(cfg.Sessions, cfg.Logger))
	}

	if cfg.Auth != nil {
		protected.HandleFunc("/auth/sessions/current", cfg.Auth.DeleteCurrentSession).Methods(http.MethodDelete)
	}

	if cfg.Calendars != nil {
		protected.HandleFunc("/calendars", cfg.Calendars.List).Methods(http.MethodGet)
		protected.HandleFunc("/calendars", cfg.Calendars.Create).Methods(http.MethodPost)
		protected.HandleFunc("/calendars/{id}", cfg.Calendars.Update).Methods(http.MethodPut)
		protected.HandleFunc("/calendars/{id}", cfg.Calendars.Delete).Methods(http.MethodDelete)
	}

	if cfg.Events != nil {
		protected.HandleFunc("/calendars/{id}/export.ics", cfg.Events.Export).Methods(http.MethodGet)
		protected.HandleFunc("/events", cfg.Events.List).Methods(http.MethodGet)
		protected.HandleFunc("/events", cfg.Events.Create).Methods(http.MethodPost)
		protected.HandleFunc("/events/{id}", cfg.Events.Update).Methods(http.MethodPut)
		protected.HandleFunc("/events/{id}", cfg.Events.Delete).Methods(http.MethodDelete)
	}

	if cfg.Members != nil {
		protected.HandleFunc("/calendars/{id}/members", cfg.Members.List).Methods(http.MethodGet)
		protected.HandleFunc("/calendars/{id}/members/{userID}", cfg.Members.UpdateRole).Methods(http.MethodPatch)
		protected.HandleFunc("/calendars/{id}/members/{userID}", cfg.Members.Remove).Methods(http.MethodDelete)
	}

	if cfg.Invites != nil {
		protected.HandleFunc("/calendars/{id}/members", cfg.Invites.Create).Methods(http.MethodPost)
		protected.HandleFunc("/calendars/{id}/invites", cfg.Invites.List).Methods(http.MethodGet)
		protected.HandleFunc("/invites/id/{inviteID}", cfg.Invites.Cancel).Methods(http.MethodDelete)
		protected.HandleFunc("/invites/{token}", cfg.Invites.Preview).Methods(http.MethodGet)
		protected.HandleFunc("/invites/{token}/accept", cfg.Invites.Accept).Methods(http.MethodPost)
		protected.HandleFunc("/invites/{token}/decline", cfg.Invites.Decline).Methods(http.MethodPost)
	}

	var handler http.Handler = root
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Session-Token", "X-Request-ID"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return RequestLogger(cfg.Logger)(handler)
}
