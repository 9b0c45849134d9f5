package testfixtures

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/calshare/internal/application"
	"github.com/example/calshare/internal/icsexport"
	"github.com/example/calshare/internal/wiring"
)

// ServiceFactory builds the production service graph with deterministic ids,
// tokens and time so tests can assert on exact values.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Tokens      *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Tokens:      NewIDGenerator("token"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if clock != nil {
			factory.Clock = clock
		}
	}
}

func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if generator != nil {
			factory.IDGenerator = generator
		}
	}
}

// NotificationRecorder captures invite notifications in memory.
type NotificationRecorder struct {
	Sent []application.InviteNotification
}

func (r *NotificationRecorder) SendInvite(_ context.Context, n application.InviteNotification) error {
	r.Sent = append(r.Sent, n)
	return nil
}

// StaticLinks renders invite links under https://calshare.test.
type StaticLinks struct{}

func (StaticLinks) InviteLink(token string) string {
	return "https://calshare.test/invites/" + token
}

// NewServices wires every service over store. Notifications run inline and are
// recorded on the returned recorder. Passwords are stored in clear text so
// login tests stay fast.
func (f *ServiceFactory) NewServices(store wiring.Store, logger *slog.Logger) (*wiring.Services, *NotificationRecorder) {
	recorder := &NotificationRecorder{}
	services := wiring.NewServices(wiring.Options{
		Store:          store,
		Notifier:       recorder,
		Links:          StaticLinks{},
		Exporter:       icsexport.NewExporter(""),
		IDGenerator:    f.IDGenerator.NextFunc(),
		SessionTokens:  f.Tokens.NextFunc(),
		InviteTokens:   f.Tokens.TokenFunc(),
		PasswordHasher: plainHasher,
		PasswordVerify: plainVerifier,
		Now:            f.Clock.NowFunc(),
		Logger:         logger,
	})
	return services, recorder
}

func plainHasher(password string) (string, error) {
	return "plain:" + password, nil
}

func plainVerifier(hashed, password string) error {
	if hashed != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}
