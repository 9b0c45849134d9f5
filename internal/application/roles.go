package application

import "strings"

// Role is a user's relationship to a calendar.
type Role string

const (
	// RoleNone means the user has no relationship with the calendar.
	RoleNone   Role = ""
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
	// RoleOwner is derived from Calendar.OwnerID and never stored on a member.
	RoleOwner Role = "owner"
)

var rolePrecedence = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

var (
	// ManageMembersRoles may invite, re-role, and remove members.
	ManageMembersRoles = []Role{RoleAdmin}
	// ManageCalendarRoles may rename or recolor a calendar.
	ManageCalendarRoles = []Role{RoleAdmin}
	// ManageEventsRoles may create, edit, and delete events.
	ManageEventsRoles = []Role{RoleAdmin, RoleEditor}
	readRoles         = []Role{RoleAdmin, RoleEditor, RoleViewer}
)

// AtLeast reports whether r ranks at or above min. RoleNone ranks below everything.
func (r Role) AtLeast(min Role) bool {
	rank, ok := rolePrecedence[r]
	if !ok {
		return false
	}
	return rank >= rolePrecedence[min]
}

// IsMemberRole reports whether r may be stored on a member record.
func (r Role) IsMemberRole() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// ParseMemberRole validates a caller supplied member role. An empty value
// yields fallback when fallback is itself a member role.
func ParseMemberRole(value string, fallback Role) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if normalized == RoleNone {
		if fallback.IsMemberRole() {
			return fallback, nil
		}
		return RoleNone, fieldError("role", "role is required")
	}
	if !normalized.IsMemberRole() {
		return RoleNone, fieldError("role", "role must be one of admin, editor, viewer")
	}
	return normalized, nil
}

func roleAllowed(role Role, allowed []Role) bool {
	if role == RoleOwner {
		return true
	}
	if role == RoleNone {
		return false
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
