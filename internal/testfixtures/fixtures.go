package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/calshare/internal/application"
	"github.com/example/calshare/internal/persistence"
)

var (
	userCounter     uint64
	calendarCounter uint64
	eventCounter    uint64
)

var referenceTime = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture is a deterministic account that can be materialised for
// application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Principal returns the identity a session for this user would carry.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: f.Email, DisplayName: f.DisplayName}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// --------------------------- Calendar fixtures ---------------------------

// CalendarFixture is a deterministic calendar owned by OwnerID.
type CalendarFixture struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	Members   []application.Member
	CreatedAt time.Time
}

// CalendarOption configures the generated calendar fixture.
type CalendarOption func(*CalendarFixture)

// NewCalendarFixture returns a calendar owned by ownerID.
func NewCalendarFixture(ownerID string, opts ...CalendarOption) CalendarFixture {
	idx := atomic.AddUint64(&calendarCounter, 1)
	fixture := CalendarFixture{
		ID:        fmt.Sprintf("cal-%03d", idx),
		OwnerID:   ownerID,
		Name:      fmt.Sprintf("Calendar %03d", idx),
		Color:     application.DefaultCalendarColor,
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithCalendarID(id string) CalendarOption {
	return func(f *CalendarFixture) { f.ID = id }
}

func WithCalendarName(name string) CalendarOption {
	return func(f *CalendarFixture) { f.Name = name }
}

// WithMember appends a stored relationship. The owner must not be passed here.
func WithMember(userID string, role application.Role) CalendarOption {
	return func(f *CalendarFixture) {
		f.Members = append(f.Members, application.Member{UserID: userID, Role: role, AddedAt: f.CreatedAt})
	}
}

// Application returns the fixture as an application.Calendar value.
func (f CalendarFixture) Application() application.Calendar {
	return application.Calendar{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		Color:     f.Color,
		Members:   append([]application.Member(nil), f.Members...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Calendar value.
func (f CalendarFixture) Persistence() persistence.Calendar {
	members := make([]persistence.CalendarMember, 0, len(f.Members))
	for _, m := range f.Members {
		members = append(members, persistence.CalendarMember{UserID: m.UserID, Role: string(m.Role), AddedAt: m.AddedAt})
	}
	return persistence.Calendar{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		Color:     f.Color,
		Members:   members,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture is a one hour arrangement unless overridden.
type EventFixture struct {
	ID         string
	CalendarID string
	OwnerID    string
	Type       application.EventType
	Title      string
	Start      time.Time
	End        time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an event on calendarID created by ownerID.
func NewEventFixture(calendarID, ownerID string, opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	fixture := EventFixture{
		ID:         fmt.Sprintf("evt-%03d", idx),
		CalendarID: calendarID,
		OwnerID:    ownerID,
		Type:       application.EventTypeArrangement,
		Title:      fmt.Sprintf("Event %03d", idx),
		Start:      start,
		End:        start.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventWindow overrides start and end.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:         f.ID,
		CalendarID: f.CalendarID,
		OwnerID:    f.OwnerID,
		Type:       f.Type,
		Title:      f.Title,
		Start:      f.Start,
		End:        f.End,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:         f.ID,
		CalendarID: f.CalendarID,
		OwnerID:    f.OwnerID,
		Type:       string(f.Type),
		Title:      f.Title,
		Start:      f.Start,
		End:        f.End,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}
