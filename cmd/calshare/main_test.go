package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/calshare/internal/config"
	"github.com/example/calshare/internal/notify"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SQLiteDSN = filepath.Join(t.TempDir(), "calshare.db")
	cfg.AppURL = "https://calendar.example.com"
	return cfg
}

func TestNewApp_ServesAPI(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a, err := newApp(context.Background(), testConfig(t), logger)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})

	if got := len(a.cron.Entries()); got != 1 {
		t.Fatalf("expected session cleanup job, got %d entries", got)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	body := strings.NewReader(`{"email":"olivia@example.com","display_name":"Olivia","password":"password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := a.services.Auth.PruneExpiredSessions(context.Background()); err != nil {
		t.Fatalf("PruneExpiredSessions failed: %v", err)
	}
}

func TestNewApp_RejectsBadAppURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.AppURL = "mailto:someone"
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if _, err := newApp(context.Background(), cfg, logger); err == nil {
		t.Fatalf("expected invalid app url to be rejected")
	}
}

func TestBuildNotifier(t *testing.T) {
	t.Parallel()

	t.Run("falls back to the log sender", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		notifier, err := buildNotifier(config.Default(), slog.New(slog.NewJSONHandler(&buf, nil)))
		if err != nil {
			t.Fatalf("buildNotifier failed: %v", err)
		}
		if _, ok := notifier.(*notify.LogSender); !ok {
			t.Fatalf("expected *notify.LogSender, got %T", notifier)
		}
		if !strings.Contains(buf.String(), "SMTP is not configured") {
			t.Fatalf("expected warning about missing SMTP, got %s", buf.String())
		}
	})

	t.Run("uses SMTP when a host is configured", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.SMTP = config.SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com"}
		notifier, err := buildNotifier(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
		if err != nil {
			t.Fatalf("buildNotifier failed: %v", err)
		}
		if _, ok := notifier.(*notify.SMTPSender); !ok {
			t.Fatalf("expected *notify.SMTPSender, got %T", notifier)
		}
	})

	t.Run("surfaces bad sender addresses", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.SMTP = config.SMTPConfig{Host: "smtp.example.com", From: "not an address"}
		if _, err := buildNotifier(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil))); err == nil {
			t.Fatalf("expected error for invalid from address")
		}
	})
}

func TestRandomHex(t *testing.T) {
	t.Parallel()
	token := randomHex(32)
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if token == randomHex(32) {
		t.Fatalf("expected distinct tokens")
	}
}
