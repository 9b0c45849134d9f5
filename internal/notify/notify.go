// Package notify delivers invite notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/example/calshare/internal/application"
)

// LinkBuilder renders accept links below the public application URL.
type LinkBuilder struct {
	base string
}

var _ application.InviteLinkBuilder = LinkBuilder{}

// NewLinkBuilder validates appURL and returns a LinkBuilder for it.
func NewLinkBuilder(appURL string) (LinkBuilder, error) {
	parsed, err := url.Parse(strings.TrimSpace(appURL))
	if err != nil {
		return LinkBuilder{}, fmt.Errorf("notify: parse app url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return LinkBuilder{}, fmt.Errorf("notify: app url must be http or https, got %q", appURL)
	}
	if parsed.Host == "" {
		return LinkBuilder{}, fmt.Errorf("notify: app url has no host")
	}
	return LinkBuilder{base: strings.TrimRight(parsed.String(), "/")}, nil
}

// InviteLink returns <appURL>/invites/<token>.
func (b LinkBuilder) InviteLink(token string) string {
	return b.base + "/invites/" + url.PathEscape(token)
}

// LogSender writes notifications to the log instead of delivering them. It is
// used when no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

var _ application.InviteNotifier = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendInvite(ctx context.Context, n application.InviteNotification) error {
	s.logger.InfoContext(ctx, "invite notification",
		"invite_id", n.InviteID,
		"calendar_id", n.CalendarID,
		"email", n.Email,
		"role", string(n.Role),
		"accept_url", n.AcceptURL,
		"expires_at", n.ExpiresAt,
	)
	return nil
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc hands a composed message to the relay.
type sendFunc func(ctx context.Context, msg *gomail.Msg) error

// SMTPSender delivers invite e-mails through an SMTP relay.
type SMTPSender struct {
	addr string
	from string
	send sendFunc
	now  func() time.Time
}

var _ application.InviteNotifier = (*SMTPSender)(nil)

// NewSMTPSender validates cfg. PLAIN auth is used when a username is set and
// STARTTLS is used whenever the relay offers it.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("notify: smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if err := gomail.NewMsg().From(cfg.From); err != nil {
		return nil, fmt.Errorf("notify: invalid from address %q: %w", cfg.From, err)
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}

	return &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		send: func(ctx context.Context, msg *gomail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
		now: time.Now,
	}, nil
}

// SendInvite composes the invite e-mail and sends it. Cancelling ctx aborts
// the dial or the SMTP conversation.
func (s *SMTPSender) SendInvite(ctx context.Context, n application.InviteNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.compose(n)
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send invite %s via %s: %w", n.InviteID, s.addr, err)
	}
	return nil
}

var inviteBody = template.Must(template.New("invite").Parse(`Hello,

{{.Inviter}} invited you to the calendar "{{.CalendarName}}" as {{.Role}}.

Accept the invitation here:
{{.AcceptURL}}

The link expires on {{.Expires}}.
`))

func (s *SMTPSender) compose(n application.InviteNotification) (*gomail.Msg, error) {
	msg := gomail.NewMsg(gomail.WithEncoding(gomail.NoEncoding))
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("notify: invalid from address %q: %w", s.from, err)
	}
	if err := msg.To(n.Email); err != nil {
		return nil, fmt.Errorf("notify: invalid recipient %q: %w", n.Email, err)
	}
	msg.Subject("Invitation to " + n.CalendarName)
	msg.SetDateWithValue(s.now())

	inviter := n.InviterName
	if inviter == "" {
		inviter = n.InviterEmail
	}
	err := msg.SetBodyTextTemplate(inviteBody, map[string]string{
		"Inviter":      inviter,
		"CalendarName": n.CalendarName,
		"Role":         string(n.Role),
		"AcceptURL":    n.AcceptURL,
		"Expires":      n.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: render invite: %w", err)
	}
	return msg, nil
}
