package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID      string
	Email       string
	DisplayName string
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Member is a stored, non-owner relationship between a user and a calendar.
type Member struct {
	UserID  string
	Role    Role
	AddedAt time.Time
}

// Calendar is a named container of events owned by exactly one user.
type Calendar struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	Members   []Member
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOwner reports whether userID owns the calendar.
func (c Calendar) IsOwner(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

// MemberIndex returns the position of userID in Members or -1.
func (c Calendar) MemberIndex(userID string) int {
	for i, m := range c.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// InviteStatus is the lifecycle state of an invite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
	InviteStatusExpired  InviteStatus = "expired"
)

// Invite is a pending or historical offer of membership addressed to an e-mail.
type Invite struct {
	ID            string
	CalendarID    string
	Email         string
	Role          Role
	Token         string
	Status        InviteStatus
	ExpiresAt     *time.Time
	InvitedBy     string
	InvitedUserID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsExpired reports whether the invite's expiry lies strictly before now.
func (i Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// EventType classifies how an event's time fields are interpreted.
type EventType string

const (
	EventTypeArrangement EventType = "arrangement"
	EventTypeReminder    EventType = "reminder"
	EventTypeTask        EventType = "task"
)

// Event is a calendar entry.
type Event struct {
	ID          string
	CalendarID  string
	OwnerID     string
	Type        EventType
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	ReminderAt  *time.Time
	DueDate     *time.Time
	Location    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleResolution pairs a fetched calendar with the caller's role on it.
type RoleResolution struct {
	Calendar Calendar
	Role     Role
}

// CalendarView is a calendar annotated with the caller's role.
type CalendarView struct {
	Calendar Calendar
	Role     Role
}

// MemberView decorates a relationship with directory attributes.
type MemberView struct {
	UserID      string
	Email       string
	DisplayName string
	Role        Role
	AddedAt     *time.Time
}

// UpdateMemberRoleParams wraps the data required to change a member's role.
type UpdateMemberRoleParams struct {
	Principal    Principal
	CalendarID   string
	TargetUserID string
	Role         string
}

// MemberRoleResult reports the role stored for the target member.
type MemberRoleResult struct {
	TargetUserID string
	Role         Role
}

// InviteMemberParams wraps the data required to invite an e-mail to a calendar.
type InviteMemberParams struct {
	Principal  Principal
	CalendarID string
	Email      string
	Role       string
}

// InviteResult is the outcome of issuing or re-issuing an invite.
type InviteResult struct {
	Invite   Invite
	Reissued bool
}

// AcceptResult identifies the membership granted by an accepted invite.
type AcceptResult struct {
	CalendarID string
	Role       Role
}

// InvitePreview is the invitee-facing summary of an invite. It never carries the token.
type InvitePreview struct {
	InviteID      string
	CalendarID    string
	CalendarName  string
	Email         string
	Role          Role
	Status        InviteStatus
	ExpiresAt     *time.Time
	InvitedByName string
}

// InviteNotification carries what an invite e-mail needs to render.
type InviteNotification struct {
	InviteID     string
	CalendarID   string
	CalendarName string
	Email        string
	Role         Role
	InviterName  string
	InviterEmail string
	AcceptURL    string
	ExpiresAt    time.Time
}

// CreateCalendarParams wraps the data required to create a calendar.
type CreateCalendarParams struct {
	Principal Principal
	Name      string
	Color     string
}

// UpdateCalendarParams wraps a partial calendar update. Nil fields are left unchanged.
type UpdateCalendarParams struct {
	Principal  Principal
	CalendarID string
	Name       *string
	Color      *string
}

// EventInput captures caller provided event fields. Nil pointers mean "not supplied".
type EventInput struct {
	CalendarID  *string
	Type        *string
	Title       *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
	ReminderAt  *time.Time
	DueDate     *time.Time
	Location    *string
	Description *string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListEventsParams bounds an event listing.
type ListEventsParams struct {
	Principal   Principal
	CalendarIDs []string
	Start       *time.Time
	End         *time.Time
}

// EventFilter is passed to the event repository. Zero bounds are open.
type EventFilter struct {
	CalendarIDs []string
	Start       time.Time
	End         time.Time
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
}

// RegisterResult is the account and default calendar created by registration.
type RegisterResult struct {
	User     User
	Calendar Calendar
}

// Session represents an authenticated session issued to a user.
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

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
