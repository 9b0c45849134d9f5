// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/calshare/internal/application"
)

// Metrics holds every collector and implements application.Observer.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AccessDeniedTotal        *prometheus.CounterVec
	InvitesIssuedTotal       *prometheus.CounterVec
	InvitesAcceptedTotal     prometheus.Counter
	InvitesExpiredTotal      prometheus.Counter
	InviteNotificationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ application.Observer = (*Metrics)(nil)

// New creates the collectors and registers them, with the Go and process
// collectors, on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calshare_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calshare_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calshare_access_denied_total",
				Help: "Calendar operations rejected by the access gate, by the caller's resolved role",
			},
			[]string{"role"},
		),
		InvitesIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calshare_invites_issued_total",
				Help: "Invites issued, split by first issue and re-issue",
			},
			[]string{"kind"},
		),
		InvitesAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calshare_invites_accepted_total",
			Help: "Invites accepted",
		}),
		InvitesExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calshare_invites_expired_total",
			Help: "Pending invites transitioned to expired on read",
		}),
		InviteNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calshare_invite_notifications_total",
				Help: "Invite notification attempts by result",
			},
			[]string{"result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDeniedTotal,
		m.InvitesIssuedTotal,
		m.InvitesAcceptedTotal,
		m.InvitesExpiredTotal,
		m.InviteNotificationsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) AccessDenied(role application.Role) {
	m.AccessDeniedTotal.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) InviteIssued(reissued bool) {
	kind := "new"
	if reissued {
		kind = "reissued"
	}
	m.InvitesIssuedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) InviteAccepted() { m.InvitesAcceptedTotal.Inc() }

func (m *Metrics) InviteExpired() { m.InvitesExpiredTotal.Inc() }

func (m *Metrics) InviteNotification(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.InviteNotificationsTotal.WithLabelValues(result).Inc()
}
