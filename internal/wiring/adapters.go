// Package wiring adapts the persistence repositories to the interfaces the
// application services depend on.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/calshare/internal/application"
	"github.com/example/calshare/internal/persistence"
)

// translateError maps storage sentinels onto application sentinels while keeping
// the original error in the chain.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrConflict, err)
	}
	return err
}

// UserStore serves registration, credential lookup and the user directory.
type UserStore struct {
	repo persistence.UserRepository
}

var (
	_ application.UserRepository  = (*UserStore)(nil)
	_ application.UserDirectory   = (*UserStore)(nil)
	_ application.CredentialStore = (*UserStore)(nil)
)

func NewUserStore(repo persistence.UserRepository) *UserStore {
	return &UserStore{repo: repo}
}

func (a *UserStore) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, translateError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, translateError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *UserStore) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, translateError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *UserStore) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, translateError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *UserStore) ListUsersByIDs(ctx context.Context, ids []string) ([]application.User, error) {
	stored, err := a.repo.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, translateError(err)
	}
	users := make([]application.User, 0, len(stored))
	for _, u := range stored {
		users = append(users, toApplicationUser(u))
	}
	return users, nil
}

func (a *UserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, translateError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// CalendarStore adapts persistence.CalendarRepository.
type CalendarStore struct {
	repo persistence.CalendarRepository
}

var _ application.CalendarRepository = (*CalendarStore)(nil)

func NewCalendarStore(repo persistence.CalendarRepository) *CalendarStore {
	return &CalendarStore{repo: repo}
}

func (a *CalendarStore) CreateCalendar(ctx context.Context, calendar application.Calendar) (application.Calendar, error) {
	if err := a.repo.CreateCalendar(ctx, toPersistenceCalendar(calendar)); err != nil {
		return application.Calendar{}, translateError(err)
	}
	return calendar, nil
}

func (a *CalendarStore) GetCalendar(ctx context.Context, id string) (application.Calendar, error) {
	stored, err := a.repo.GetCalendar(ctx, id)
	if err != nil {
		return application.Calendar{}, translateError(err)
	}
	return toApplicationCalendar(stored), nil
}

func (a *CalendarStore) SaveCalendar(ctx context.Context, calendar application.Calendar) (application.Calendar, error) {
	if err := a.repo.SaveCalendar(ctx, toPersistenceCalendar(calendar)); err != nil {
		return application.Calendar{}, translateError(err)
	}
	return calendar, nil
}

func (a *CalendarStore) DeleteCalendar(ctx context.Context, id string) error {
	return translateError(a.repo.DeleteCalendar(ctx, id))
}

func (a *CalendarStore) ListCalendarsForUser(ctx context.Context, userID string) ([]application.Calendar, error) {
	stored, err := a.repo.ListCalendarsForUser(ctx, userID)
	if err != nil {
		return nil, translateError(err)
	}
	calendars := make([]application.Calendar, 0, len(stored))
	for _, c := range stored {
		calendars = append(calendars, toApplicationCalendar(c))
	}
	return calendars, nil
}

// InviteStore adapts persistence.InviteRepository.
type InviteStore struct {
	repo persistence.InviteRepository
}

var _ application.InviteRepository = (*InviteStore)(nil)

func NewInviteStore(repo persistence.InviteRepository) *InviteStore {
	return &InviteStore{repo: repo}
}

func (a *InviteStore) CreateInvite(ctx context.Context, invite application.Invite) (application.Invite, error) {
	if err := a.repo.CreateInvite(ctx, toPersistenceInvite(invite)); err != nil {
		return application.Invite{}, translateError(err)
	}
	return invite, nil
}

func (a *InviteStore) SaveInvite(ctx context.Context, invite application.Invite) (application.Invite, error) {
	if err := a.repo.SaveInvite(ctx, toPersistenceInvite(invite)); err != nil {
		return application.Invite{}, translateError(err)
	}
	return invite, nil
}

func (a *InviteStore) GetInvite(ctx context.Context, id string) (application.Invite, error) {
	stored, err := a.repo.GetInvite(ctx, id)
	if err != nil {
		return application.Invite{}, translateError(err)
	}
	return toApplicationInvite(stored), nil
}

func (a *InviteStore) GetInviteByToken(ctx context.Context, token string) (application.Invite, error) {
	stored, err := a.repo.GetInviteByToken(ctx, token)
	if err != nil {
		return application.Invite{}, translateError(err)
	}
	return toApplicationInvite(stored), nil
}

func (a *InviteStore) FindPendingInvite(ctx context.Context, calendarID, email string) (application.Invite, error) {
	stored, err := a.repo.FindPendingInvite(ctx, calendarID, email)
	if err != nil {
		return application.Invite{}, translateError(err)
	}
	return toApplicationInvite(stored), nil
}

func (a *InviteStore) ListInvitesForCalendar(ctx context.Context, calendarID string) ([]application.Invite, error) {
	stored, err := a.repo.ListInvitesForCalendar(ctx, calendarID)
	if err != nil {
		return nil, translateError(err)
	}
	invites := make([]application.Invite, 0, len(stored))
	for _, inv := range stored {
		invites = append(invites, toApplicationInvite(inv))
	}
	return invites, nil
}

func (a *InviteStore) DeleteInvite(ctx context.Context, id string) error {
	return translateError(a.repo.DeleteInvite(ctx, id))
}

// EventStore adapts persistence.EventRepository.
type EventStore struct {
	repo persistence.EventRepository
}

var _ application.EventRepository = (*EventStore)(nil)

func NewEventStore(repo persistence.EventRepository) *EventStore {
	return &EventStore{repo: repo}
}

func (a *EventStore) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, translateError(err)
	}
	return event, nil
}

func (a *EventStore) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, translateError(err)
	}
	return event, nil
}

func (a *EventStore) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, translateError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *EventStore) DeleteEvent(ctx context.Context, id string) error {
	return translateError(a.repo.DeleteEvent(ctx, id))
}

func (a *EventStore) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.Event, error) {
	stored, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		CalendarIDs: append([]string(nil), filter.CalendarIDs...),
		Start:       filter.Start,
		End:         filter.End,
	})
	if err != nil {
		return nil, translateError(err)
	}
	events := make([]application.Event, 0, len(stored))
	for _, e := range stored {
		events = append(events, toApplicationEvent(e))
	}
	return events, nil
}

// SessionStore adapts persistence.SessionRepository.
type SessionStore struct {
	repo persistence.SessionRepository
}

var _ application.SessionRepository = (*SessionStore)(nil)

func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (a *SessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, translateError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return translateError(a.repo.DeleteExpiredSessions(ctx, reference))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationCalendar(model persistence.Calendar) application.Calendar {
	members := make([]application.Member, 0, len(model.Members))
	for _, m := range model.Members {
		members = append(members, application.Member{
			UserID:  m.UserID,
			Role:    application.Role(m.Role),
			AddedAt: m.AddedAt,
		})
	}
	return application.Calendar{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		Name:      model.Name,
		Color:     model.Color,
		Members:   members,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceCalendar(calendar application.Calendar) persistence.Calendar {
	members := make([]persistence.CalendarMember, 0, len(calendar.Members))
	for _, m := range calendar.Members {
		members = append(members, persistence.CalendarMember{
			UserID:  m.UserID,
			Role:    string(m.Role),
			AddedAt: m.AddedAt,
		})
	}
	return persistence.Calendar{
		ID:        calendar.ID,
		OwnerID:   calendar.OwnerID,
		Name:      calendar.Name,
		Color:     calendar.Color,
		Members:   members,
		CreatedAt: calendar.CreatedAt,
		UpdatedAt: calendar.UpdatedAt,
	}
}

func toApplicationInvite(model persistence.Invite) application.Invite {
	return application.Invite{
		ID:            model.ID,
		CalendarID:    model.CalendarID,
		Email:         model.Email,
		Role:          application.Role(model.Role),
		Token:         model.Token,
		Status:        application.InviteStatus(model.Status),
		ExpiresAt:     cloneTime(model.ExpiresAt),
		InvitedBy:     model.InvitedBy,
		InvitedUserID: cloneString(model.InvitedUserID),
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceInvite(invite application.Invite) persistence.Invite {
	return persistence.Invite{
		ID:            invite.ID,
		CalendarID:    invite.CalendarID,
		Email:         invite.Email,
		Role:          string(invite.Role),
		Token:         invite.Token,
		Status:        string(invite.Status),
		ExpiresAt:     cloneTime(invite.ExpiresAt),
		InvitedBy:     invite.InvitedBy,
		InvitedUserID: cloneString(invite.InvitedUserID),
		CreatedAt:     invite.CreatedAt,
		UpdatedAt:     invite.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:          model.ID,
		CalendarID:  model.CalendarID,
		OwnerID:     model.OwnerID,
		Type:        application.EventType(model.Type),
		Title:       model.Title,
		Start:       model.Start,
		End:         model.End,
		AllDay:      model.AllDay,
		ReminderAt:  cloneTime(model.ReminderAt),
		DueDate:     cloneTime(model.DueDate),
		Location:    derefString(model.Location),
		Description: derefString(model.Description),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		CalendarID:  event.CalendarID,
		OwnerID:     event.OwnerID,
		Type:        string(event.Type),
		Title:       event.Title,
		Start:       event.Start,
		End:         event.End,
		AllDay:      event.AllDay,
		ReminderAt:  cloneTime(event.ReminderAt),
		DueDate:     cloneTime(event.DueDate),
		Location:    optionalString(event.Location),
		Description: optionalString(event.Description),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
