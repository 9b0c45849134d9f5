package persistence

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Calendar represents a calendar document together with its member rows.
type Calendar struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	Members   []CalendarMember
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalendarMember is a non-owner relationship to a calendar.
type CalendarMember struct {
	UserID  string
	Role    string
	AddedAt time.Time
}

// Invite represents a calendar invitation addressed to an email.
type Invite struct {
	ID            string
	CalendarID    string
	Email         string
	Role          string
	Token         string
	Status        string
	ExpiresAt     *time.Time
	InvitedBy     string
	InvitedUserID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event represents an entry on a calendar.
type Event struct {
	ID          string
	CalendarID  string
	OwnerID     string
	Type        string
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	ReminderAt  *time.Time
	DueDate     *time.Time
	Location    *string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
