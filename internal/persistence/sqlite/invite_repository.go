package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/calshare/internal/persistence"
)

const inviteColumns = `id, calendar_id, email, role, token, status, expires_at, invited_by, invited_user_id, created_at, updated_at`

// InviteRepository implements persistence.InviteRepository using SQLite
type InviteRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewInviteRepository creates a new SQLite invite repository
func NewInviteRepository(pool *ConnectionPool) *InviteRepository {
	return &InviteRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateInvite inserts a new invitation. Tokens are unique.
func (r *InviteRepository) CreateInvite(ctx context.Context, invite persistence.Invite) error {
	if invite.ID == "" || invite.CalendarID == "" || invite.Token == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO calendar_invites (`+inviteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		invite.ID,
		invite.CalendarID,
		normalizeEmail(invite.Email),
		invite.Role,
		invite.Token,
		invite.Status,
		formatTimePtr(invite.ExpiresAt),
		invite.InvitedBy,
		nullString(invite.InvitedUserID),
		formatTime(invite.CreatedAt),
		formatTime(invite.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// SaveInvite overwrites the mutable fields of an invitation.
func (r *InviteRepository) SaveInvite(ctx context.Context, invite persistence.Invite) error {
	if invite.ID == "" || invite.Token == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE calendar_invites
		SET role = ?, token = ?, status = ?, expires_at = ?, invited_by = ?, invited_user_id = ?, updated_at = ?
		WHERE id = ?
	`,
		invite.Role,
		invite.Token,
		invite.Status,
		formatTimePtr(invite.ExpiresAt),
		invite.InvitedBy,
		nullString(invite.InvitedUserID),
		formatTime(invite.UpdatedAt),
		invite.ID,
	)
	return requireAffected(result, err, r.mapper)
}

// GetInvite retrieves an invitation by ID
func (r *InviteRepository) GetInvite(ctx context.Context, id string) (persistence.Invite, error) {
	if id == "" {
		return persistence.Invite{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM calendar_invites WHERE id = ?`, id)
	return r.scanInvite(row)
}

// GetInviteByToken retrieves an invitation by its secret token
func (r *InviteRepository) GetInviteByToken(ctx context.Context, token string) (persistence.Invite, error) {
	if token == "" {
		return persistence.Invite{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM calendar_invites WHERE token = ?`, token)
	return r.scanInvite(row)
}

// FindPendingInvite returns the most recent pending invitation for (calendar, email).
func (r *InviteRepository) FindPendingInvite(ctx context.Context, calendarID, email string) (persistence.Invite, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+inviteColumns+`
		FROM calendar_invites
		WHERE calendar_id = ? AND email = ? AND status = 'pending'
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, calendarID, normalizeEmail(email))
	return r.scanInvite(row)
}

// ListInvitesForCalendar returns all invitations of a calendar, newest first.
func (r *InviteRepository) ListInvitesForCalendar(ctx context.Context, calendarID string) ([]persistence.Invite, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM calendar_invites
		WHERE calendar_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, calendarID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var invites []persistence.Invite
	for rows.Next() {
		invite, err := r.scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return invites, nil
}

// DeleteInvite removes an invitation by ID
func (r *InviteRepository) DeleteInvite(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM calendar_invites WHERE id = ?`, id)
	return requireAffected(result, err, r.mapper)
}

func (r *InviteRepository) scanInvite(row rowScanner) (persistence.Invite, error) {
	var (
		invite                 persistence.Invite
		expiresAt, invitedUser sql.NullString
		createdAt, updatedAt   string
	)
	err := row.Scan(
		&invite.ID,
		&invite.CalendarID,
		&invite.Email,
		&invite.Role,
		&invite.Token,
		&invite.Status,
		&expiresAt,
		&invite.InvitedBy,
		&invitedUser,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Invite{}, r.mapper.MapError(err)
	}

	if invite.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return persistence.Invite{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	invite.InvitedUserID = stringPtr(invitedUser)
	if invite.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Invite{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invite.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Invite{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return invite, nil
}
