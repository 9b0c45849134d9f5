package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	minDisplayNameLength = 2
	maxDisplayNameLength = 120
	minPasswordLength    = 8
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// DefaultCalendarCreator provisions the first calendar of a new account.
type DefaultCalendarCreator interface {
	CreateDefaultCalendar(ctx context.Context, owner Principal) (Calendar, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates account registration.
type UserService struct {
	users        UserRepository
	calendars    DefaultCalendarCreator
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, calendars DefaultCalendarCreator, hasher PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, calendars, hasher, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a logger.
func NewUserServiceWithLogger(users UserRepository, calendars DefaultCalendarCreator, hasher PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		calendars:    calendars,
		hashPassword: hasher,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Register creates an account and its default calendar.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (result RegisterResult, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	normalized := normalizeRegisterParams(params)
	logger := serviceLogger(ctx, s.logger, "UserService", "Register", "email", normalized.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"calendar_id", result.Calendar.ID,
		).InfoContext(ctx, "user registered")
	}()

	if vErr := validateRegisterParams(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(normalized.Password)
	if err != nil {
		return
	}

	now := s.now()
	user := User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user, err = s.users.CreateUser(ctx, user, hash)
	if err != nil {
		return
	}
	result.User = user

	if s.calendars != nil {
		result.Calendar, err = s.calendars.CreateDefaultCalendar(ctx, Principal{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
		})
		if err != nil {
			result = RegisterResult{}
			return
		}
	}
	return
}

func normalizeRegisterParams(params RegisterParams) RegisterParams {
	return RegisterParams{
		Email:       normalizeEmail(params.Email),
		DisplayName: strings.TrimSpace(params.DisplayName),
		Password:    params.Password,
	}
}

func validateRegisterParams(params RegisterParams) *ValidationError {
	vErr := &ValidationError{}

	if params.Email == "" {
		vErr.add("email", "email is required")
	} else if !isBareAddress(params.Email) {
		vErr.add("email", "email is invalid")
	}

	switch n := len([]rune(params.DisplayName)); {
	case n == 0:
		vErr.add("display_name", "display name is required")
	case n < minDisplayNameLength || n > maxDisplayNameLength:
		vErr.add("display_name", fmt.Sprintf("display name must be %d to %d characters", minDisplayNameLength, maxDisplayNameLength))
	}

	if len(params.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	return vErr
}
