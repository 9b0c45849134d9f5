package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// UserDirectory resolves user attributes for member and invite views.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]User, error)
}

// MembershipService manages the stored member set of a calendar.
type MembershipService struct {
	calendars CalendarRepository
	users     UserDirectory
	access    *AccessControl
	now       func() time.Time
	logger    *slog.Logger
}

// NewMembershipService wires dependencies for the membership service.
func NewMembershipService(calendars CalendarRepository, users UserDirectory, access *AccessControl, now func() time.Time) *MembershipService {
	return NewMembershipServiceWithLogger(calendars, users, access, now, nil)
}

// NewMembershipServiceWithLogger wires dependencies for the membership service with a logger.
func NewMembershipServiceWithLogger(calendars CalendarRepository, users UserDirectory, access *AccessControl, now func() time.Time, logger *slog.Logger) *MembershipService {
	if now == nil {
		now = time.Now
	}
	if access == nil {
		access = NewAccessControl(calendars, nil, logger)
	}
	return &MembershipService{
		calendars: calendars,
		users:     users,
		access:    access,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *MembershipService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MembershipService", operation, attrs...)
}

// ListMembers returns the owner followed by stored members. Any relationship may read it.
func (s *MembershipService) ListMembers(ctx context.Context, principal Principal, calendarID string) (views []MemberView, err error) {
	if s == nil {
		err = fmt.Errorf("MembershipService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListMembers", "principal_id", principal.UserID, "calendar_id", calendarID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list members", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "listed members", "count", len(views))
	}()

	var calendar Calendar
	calendar, err = s.access.RequireRelationship(ctx, calendarID, principal.UserID)
	if err != nil {
		return
	}

	ids := make([]string, 0, len(calendar.Members)+1)
	ids = append(ids, calendar.OwnerID)
	for _, m := range calendar.Members {
		ids = append(ids, m.UserID)
	}

	directory := map[string]User{}
	if s.users != nil {
		var users []User
		users, err = s.users.ListUsersByIDs(ctx, ids)
		if err != nil {
			return
		}
		for _, u := range users {
			directory[u.ID] = u
		}
	}

	owner := directory[calendar.OwnerID]
	views = make([]MemberView, 0, len(ids))
	views = append(views, MemberView{
		UserID:      calendar.OwnerID,
		Email:       owner.Email,
		DisplayName: owner.DisplayName,
		Role:        RoleOwner,
	})
	for _, m := range calendar.Members {
		u := directory[m.UserID]
		addedAt := m.AddedAt
		views = append(views, MemberView{
			UserID:      m.UserID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Role:        m.Role,
			AddedAt:     &addedAt,
		})
	}
	return
}

// UpdateMemberRole changes the stored role of an existing member.
func (s *MembershipService) UpdateMemberRole(ctx context.Context, params UpdateMemberRoleParams) (result MemberRoleResult, err error) {
	if s == nil {
		err = fmt.Errorf("MembershipService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateMemberRole",
		"principal_id", params.Principal.UserID,
		"calendar_id", params.CalendarID,
		"target_user_id", params.TargetUserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update member role", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member role updated", "role", string(result.Role))
	}()

	var calendar Calendar
	calendar, err = s.access.RequireRole(ctx, params.CalendarID, params.Principal.UserID, ManageMembersRoles...)
	if err != nil {
		return
	}
	if calendar.IsOwner(params.TargetUserID) {
		err = invalidOperation("cannot change the owner's role")
		return
	}

	var role Role
	role, err = ParseMemberRole(params.Role, RoleNone)
	if err != nil {
		return
	}

	idx := calendar.MemberIndex(params.TargetUserID)
	if idx < 0 {
		err = ErrNotFound
		return
	}

	calendar.Members = cloneMembers(calendar.Members)
	calendar.Members[idx].Role = role
	calendar.UpdatedAt = s.now()
	if _, err = s.calendars.SaveCalendar(ctx, calendar); err != nil {
		return
	}

	result = MemberRoleResult{TargetUserID: params.TargetUserID, Role: role}
	return
}

// RemoveMember deletes a member. Admins and the owner may remove anyone but the
// owner; any member may remove themself.
func (s *MembershipService) RemoveMember(ctx context.Context, principal Principal, calendarID, targetUserID string) (err error) {
	if s == nil {
		return fmt.Errorf("MembershipService is nil")
	}

	logger := s.loggerWith(ctx, "RemoveMember",
		"principal_id", principal.UserID,
		"calendar_id", calendarID,
		"target_user_id", targetUserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to remove member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member removed")
	}()

	var resolution RoleResolution
	resolution, err = s.access.ResolveRole(ctx, calendarID, principal.UserID)
	if err != nil {
		return
	}

	leaving := targetUserID == principal.UserID && resolution.Role.IsMemberRole()
	if !leaving {
		if err = s.access.authorize(ctx, resolution, principal.UserID, ManageMembersRoles); err != nil {
			return
		}
	}

	calendar := resolution.Calendar
	if calendar.IsOwner(targetUserID) {
		err = invalidOperation("cannot remove the owner")
		return
	}

	idx := calendar.MemberIndex(targetUserID)
	if idx < 0 {
		err = ErrNotFound
		return
	}

	members := make([]Member, 0, len(calendar.Members)-1)
	members = append(members, calendar.Members[:idx]...)
	members = append(members, calendar.Members[idx+1:]...)
	calendar.Members = members
	calendar.UpdatedAt = s.now()

	_, err = s.calendars.SaveCalendar(ctx, calendar)
	return
}

func cloneMembers(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	return out
}
