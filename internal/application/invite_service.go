package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// DefaultInviteTTL is the validity window of a freshly issued invite.
const DefaultInviteTTL = 7 * 24 * time.Hour

const inviteTokenBytes = 32

// InviteRepository captures the persistence operations for invites.
type InviteRepository interface {
	CreateInvite(ctx context.Context, invite Invite) (Invite, error)
	SaveInvite(ctx context.Context, invite Invite) (Invite, error)
	GetInvite(ctx context.Context, id string) (Invite, error)
	GetInviteByToken(ctx context.Context, token string) (Invite, error)
	FindPendingInvite(ctx context.Context, calendarID, email string) (Invite, error)
	ListInvitesForCalendar(ctx context.Context, calendarID string) ([]Invite, error)
	DeleteInvite(ctx context.Context, id string) error
}

// InviteNotifier delivers an invite to its addressee.
type InviteNotifier interface {
	SendInvite(ctx context.Context, notification InviteNotification) error
}

// InviteLinkBuilder renders the URL an invitee opens to accept.
type InviteLinkBuilder interface {
	InviteLink(token string) string
}

// TaskRunner runs work after the caller has returned.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

// NewInviteToken returns 256 bits from crypto/rand encoded as unpadded base64url.
func NewInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// InviteServiceDeps groups the collaborators of InviteService.
type InviteServiceDeps struct {
	Invites     InviteRepository
	Calendars   CalendarRepository
	Users       UserDirectory
	Access      *AccessControl
	Notifier    InviteNotifier
	Links       InviteLinkBuilder
	Tasks       TaskRunner
	Tokens      func() (string, error)
	IDGenerator func() string
	Now         func() time.Time
	TTL         time.Duration
	Observer    Observer
	Logger      *slog.Logger
}

// InviteService drives the invite lifecycle: issue, accept, decline, cancel.
type InviteService struct {
	invites     InviteRepository
	calendars   CalendarRepository
	users       UserDirectory
	access      *AccessControl
	notifier    InviteNotifier
	links       InviteLinkBuilder
	tasks       TaskRunner
	tokens      func() (string, error)
	idGenerator func() string
	now         func() time.Time
	ttl         time.Duration
	observer    Observer
	logger      *slog.Logger
}

// NewInviteService constructs an InviteService, filling defaults for optional collaborators.
func NewInviteService(deps InviteServiceDeps) *InviteService {
	logger := defaultLogger(deps.Logger)
	s := &InviteService{
		invites:     deps.Invites,
		calendars:   deps.Calendars,
		users:       deps.Users,
		access:      deps.Access,
		notifier:    deps.Notifier,
		links:       deps.Links,
		tasks:       deps.Tasks,
		tokens:      deps.Tokens,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		ttl:         deps.TTL,
		observer:    defaultObserver(deps.Observer),
		logger:      logger,
	}
	if s.access == nil {
		s.access = NewAccessControl(deps.Calendars, s.observer, logger)
	}
	if s.tasks == nil {
		s.tasks = inlineRunner{logger: logger}
	}
	if s.tokens == nil {
		s.tokens = NewInviteToken
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl <= 0 {
		s.ttl = DefaultInviteTTL
	}
	return s
}

func (s *InviteService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InviteService", operation, attrs...)
}

// InviteMember issues an invite, or rotates the pending one for the same address.
func (s *InviteService) InviteMember(ctx context.Context, params InviteMemberParams) (result InviteResult, err error) {
	if s == nil {
		err = fmt.Errorf("InviteService is nil")
		return
	}
	if s.invites == nil {
		err = fmt.Errorf("invite repository not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "InviteMember",
		"principal_id", params.Principal.UserID,
		"calendar_id", params.CalendarID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to invite member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"invite_id", result.Invite.ID,
			"reissued", result.Reissued,
		).InfoContext(ctx, "invite issued")
	}()

	var calendar Calendar
	calendar, err = s.access.RequireRole(ctx, params.CalendarID, params.Principal.UserID, ManageMembersRoles...)
	if err != nil {
		return
	}

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if !isBareAddress(email) {
		vErr.add("email", "email is invalid")
	}
	role, roleErr := ParseMemberRole(params.Role, RoleViewer)
	var roleVErr *ValidationError
	if errors.As(roleErr, &roleVErr) {
		vErr.merge(roleVErr)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.users != nil {
		var owner User
		owner, err = s.users.GetUser(ctx, calendar.OwnerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return
		}
		err = nil
		if owner.Email != "" && normalizeEmail(owner.Email) == email {
			err = invalidOperation("cannot invite the calendar owner")
			return
		}
	}

	var token string
	token, err = s.tokens()
	if err != nil {
		return
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	var existing Invite
	existing, err = s.invites.FindPendingInvite(ctx, calendar.ID, email)
	switch {
	case err == nil:
		existing.Token = token
		existing.Role = role
		existing.ExpiresAt = &expiresAt
		existing.InvitedBy = params.Principal.UserID
		existing.UpdatedAt = now
		result.Invite, err = s.invites.SaveInvite(ctx, existing)
		result.Reissued = true
	case errors.Is(err, ErrNotFound):
		result.Invite, err = s.invites.CreateInvite(ctx, Invite{
			ID:         s.idGenerator(),
			CalendarID: calendar.ID,
			Email:      email,
			Role:       role,
			Token:      token,
			Status:     InviteStatusPending,
			ExpiresAt:  &expiresAt,
			InvitedBy:  params.Principal.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err != nil {
		result = InviteResult{}
		return
	}

	s.observer.InviteIssued(result.Reissued)
	s.dispatchNotification(ctx, calendar, params.Principal, result.Invite)
	return
}

func (s *InviteService) dispatchNotification(ctx context.Context, calendar Calendar, inviter Principal, invite Invite) {
	if s.notifier == nil {
		return
	}

	notification := InviteNotification{
		InviteID:     invite.ID,
		CalendarID:   calendar.ID,
		CalendarName: calendar.Name,
		Email:        invite.Email,
		Role:         invite.Role,
		InviterName:  inviter.DisplayName,
		InviterEmail: inviter.Email,
	}
	if s.links != nil {
		notification.AcceptURL = s.links.InviteLink(invite.Token)
	}
	if invite.ExpiresAt != nil {
		notification.ExpiresAt = *invite.ExpiresAt
	}

	notifier := s.notifier
	observer := s.observer
	s.tasks.Go(context.WithoutCancel(ctx), "invite-notification", func(taskCtx context.Context) error {
		err := notifier.SendInvite(taskCtx, notification)
		observer.InviteNotification(err)
		return err
	})
}

// AcceptInvite turns a pending invite addressed to the caller into a membership.
// Replaying an accept by the same user succeeds without writing.
func (s *InviteService) AcceptInvite(ctx context.Context, principal Principal, token string) (result AcceptResult, err error) {
	if s == nil {
		err = fmt.Errorf("InviteService is nil")
		return
	}
	if s.invites == nil || s.calendars == nil {
		err = fmt.Errorf("invite service repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "AcceptInvite", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to accept invite", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"calendar_id", result.CalendarID,
			"role", string(result.Role),
		).InfoContext(ctx, "invite accepted")
	}()

	var invite Invite
	invite, err = s.lookupByToken(ctx, token)
	if err != nil {
		return
	}

	if invite.Status == InviteStatusAccepted && invite.InvitedUserID != nil && *invite.InvitedUserID == principal.UserID {
		result = AcceptResult{CalendarID: invite.CalendarID, Role: invite.Role}
		return
	}
	if err = s.checkActionable(ctx, principal, &invite); err != nil {
		return
	}

	var calendar Calendar
	calendar, err = s.calendars.GetCalendar(ctx, invite.CalendarID)
	if err != nil {
		return
	}
	if calendar.IsOwner(principal.UserID) {
		err = invalidOperation("the calendar owner cannot accept an invite to their own calendar")
		return
	}

	now := s.now()
	calendar.Members = cloneMembers(calendar.Members)
	if idx := calendar.MemberIndex(principal.UserID); idx >= 0 {
		calendar.Members[idx].Role = invite.Role
	} else {
		calendar.Members = append(calendar.Members, Member{UserID: principal.UserID, Role: invite.Role, AddedAt: now})
	}
	calendar.UpdatedAt = now
	if _, err = s.calendars.SaveCalendar(ctx, calendar); err != nil {
		return
	}

	invitedUserID := principal.UserID
	invite.Status = InviteStatusAccepted
	invite.InvitedUserID = &invitedUserID
	invite.UpdatedAt = now
	if _, err = s.invites.SaveInvite(ctx, invite); err != nil {
		return
	}

	s.observer.InviteAccepted()
	result = AcceptResult{CalendarID: calendar.ID, Role: invite.Role}
	return
}

// DeclineInvite marks a pending invite addressed to the caller as declined.
func (s *InviteService) DeclineInvite(ctx context.Context, principal Principal, token string) (err error) {
	if s == nil {
		return fmt.Errorf("InviteService is nil")
	}
	if s.invites == nil {
		return fmt.Errorf("invite repository not configured")
	}

	logger := s.loggerWith(ctx, "DeclineInvite", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to decline invite", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "invite declined")
	}()

	var invite Invite
	invite, err = s.lookupByToken(ctx, token)
	if err != nil {
		return
	}
	if err = s.checkActionable(ctx, principal, &invite); err != nil {
		return
	}

	invitedUserID := principal.UserID
	invite.Status = InviteStatusDeclined
	invite.InvitedUserID = &invitedUserID
	invite.UpdatedAt = s.now()
	_, err = s.invites.SaveInvite(ctx, invite)
	return
}

// PreviewInvite returns what the addressee needs to decide on an invite.
func (s *InviteService) PreviewInvite(ctx context.Context, principal Principal, token string) (preview InvitePreview, err error) {
	if s == nil {
		err = fmt.Errorf("InviteService is nil")
		return
	}
	if s.invites == nil || s.calendars == nil {
		err = fmt.Errorf("invite service repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "PreviewInvite", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to preview invite", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var invite Invite
	invite, err = s.lookupByToken(ctx, token)
	if err != nil {
		return
	}
	if normalizeEmail(principal.Email) != invite.Email {
		err = ErrForbidden
		return
	}
	if invite, err = s.expireIfStale(ctx, invite); err != nil {
		return
	}

	var calendar Calendar
	calendar, err = s.calendars.GetCalendar(ctx, invite.CalendarID)
	if err != nil {
		return
	}

	preview = InvitePreview{
		InviteID:     invite.ID,
		CalendarID:   calendar.ID,
		CalendarName: calendar.Name,
		Email:        invite.Email,
		Role:         invite.Role,
		Status:       invite.Status,
		ExpiresAt:    invite.ExpiresAt,
	}
	if s.users != nil {
		if inviter, lookupErr := s.users.GetUser(ctx, invite.InvitedBy); lookupErr == nil {
			preview.InvitedByName = inviter.DisplayName
		}
	}
	return
}

// CancelInvite deletes a pending invite. Only calendar admins and the owner may cancel.
func (s *InviteService) CancelInvite(ctx context.Context, principal Principal, inviteID string) (err error) {
	if s == nil {
		return fmt.Errorf("InviteService is nil")
	}
	if s.invites == nil {
		return fmt.Errorf("invite repository not configured")
	}

	logger := s.loggerWith(ctx, "CancelInvite", "principal_id", principal.UserID, "invite_id", inviteID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel invite", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "invite cancelled")
	}()

	var invite Invite
	invite, err = s.invites.GetInvite(ctx, inviteID)
	if err != nil {
		return
	}
	if _, err = s.access.RequireRole(ctx, invite.CalendarID, principal.UserID, ManageMembersRoles...); err != nil {
		return
	}
	if invite, err = s.expireIfStale(ctx, invite); err != nil {
		return
	}
	if invite.Status != InviteStatusPending {
		err = invalidOperation(fmt.Sprintf("invite is %s", invite.Status))
		return
	}
	err = s.invites.DeleteInvite(ctx, invite.ID)
	return
}

// ListInvites returns every invite of a calendar, newest first, expiring stale pending ones.
func (s *InviteService) ListInvites(ctx context.Context, principal Principal, calendarID string) (invites []Invite, err error) {
	if s == nil {
		err = fmt.Errorf("InviteService is nil")
		return
	}
	if s.invites == nil {
		err = fmt.Errorf("invite repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListInvites", "principal_id", principal.UserID, "calendar_id", calendarID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list invites", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "listed invites", "count", len(invites))
	}()

	if _, err = s.access.RequireRole(ctx, calendarID, principal.UserID, ManageMembersRoles...); err != nil {
		return
	}

	var stored []Invite
	stored, err = s.invites.ListInvitesForCalendar(ctx, calendarID)
	if err != nil {
		return
	}

	invites = make([]Invite, 0, len(stored))
	for _, inv := range stored {
		inv, err = s.expireIfStale(ctx, inv)
		if err != nil {
			invites = nil
			return
		}
		invites = append(invites, inv)
	}
	return
}

func (s *InviteService) lookupByToken(ctx context.Context, token string) (Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Invite{}, ErrNotFound
	}
	return s.invites.GetInviteByToken(ctx, token)
}

// checkActionable enforces the pending, unexpired, addressed-to-caller rules shared
// by accept and decline, persisting the expired status when it applies.
func (s *InviteService) checkActionable(ctx context.Context, principal Principal, invite *Invite) error {
	if invite.Status != InviteStatusPending {
		return &InvalidStateError{Status: invite.Status}
	}
	expired, err := s.expireIfStale(ctx, *invite)
	if err != nil {
		return err
	}
	if expired.Status == InviteStatusExpired {
		*invite = expired
		return ErrGone
	}
	if normalizeEmail(principal.Email) != invite.Email {
		return ErrForbidden
	}
	return nil
}

// expireIfStale persists the expired status of a pending invite past its expiry.
func (s *InviteService) expireIfStale(ctx context.Context, invite Invite) (Invite, error) {
	now := s.now()
	if invite.Status != InviteStatusPending || !invite.IsExpired(now) {
		return invite, nil
	}
	invite.Status = InviteStatusExpired
	invite.UpdatedAt = now
	saved, err := s.invites.SaveInvite(ctx, invite)
	if err != nil {
		return Invite{}, err
	}
	s.observer.InviteExpired()
	return saved, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isBareAddress reports whether email is a plain, already normalized address.
// Display-name forms such as "Adam <adam@example.com>" parse as valid but
// would never match a stored user, so they are rejected.
func isBareAddress(email string) bool {
	parsed, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return normalizeEmail(parsed.Address) == email
}

// inlineRunner runs tasks synchronously; failures are logged and dropped.
type inlineRunner struct {
	logger *slog.Logger
}

func (r inlineRunner) Go(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		defaultLogger(r.logger).ErrorContext(ctx, "background task failed", "task", name, "error", err)
	}
}
