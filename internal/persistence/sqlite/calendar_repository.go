package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/calshare/internal/persistence"
)

const calendarColumns = `id, owner_id, name, color, created_at, updated_at`

// CalendarRepository implements persistence.CalendarRepository using SQLite.
// Member rows live in calendar_members and are always written together with
// their calendar.
type CalendarRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewCalendarRepository creates a new SQLite calendar repository
func NewCalendarRepository(pool *ConnectionPool) *CalendarRepository {
	return &CalendarRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateCalendar inserts a calendar and its initial members.
func (r *CalendarRepository) CreateCalendar(ctx context.Context, calendar persistence.Calendar) error {
	if calendar.ID == "" || calendar.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendars (`+calendarColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			calendar.ID,
			calendar.OwnerID,
			calendar.Name,
			calendar.Color,
			formatTime(calendar.CreatedAt),
			formatTime(calendar.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertMembers(ctx, tx, calendar)
	})
}

// GetCalendar loads a calendar with its members in insertion order.
func (r *CalendarRepository) GetCalendar(ctx context.Context, id string) (persistence.Calendar, error) {
	if id == "" {
		return persistence.Calendar{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = ?`, id)
	calendar, err := r.scanCalendar(row)
	if err != nil {
		return persistence.Calendar{}, err
	}

	members, err := r.loadMembers(ctx, []string{calendar.ID})
	if err != nil {
		return persistence.Calendar{}, err
	}
	calendar.Members = members[calendar.ID]
	return calendar, nil
}

// SaveCalendar replaces the stored document, member set included, in one transaction.
func (r *CalendarRepository) SaveCalendar(ctx context.Context, calendar persistence.Calendar) error {
	if calendar.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE calendars
			SET name = ?, color = ?, updated_at = ?
			WHERE id = ?
		`,
			calendar.Name,
			calendar.Color,
			formatTime(calendar.UpdatedAt),
			calendar.ID,
		)
		if err := requireAffected(result, err, r.mapper); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_members WHERE calendar_id = ?`, calendar.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertMembers(ctx, tx, calendar)
	})
}

// DeleteCalendar removes a calendar together with its members, invites and events.
func (r *CalendarRepository) DeleteCalendar(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM events WHERE calendar_id = ?`,
			`DELETE FROM calendar_invites WHERE calendar_id = ?`,
			`DELETE FROM calendar_members WHERE calendar_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return r.mapper.MapError(err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, id)
		return requireAffected(result, err, r.mapper)
	})
}

// ListCalendarsForUser returns calendars the user owns or is a member of,
// oldest first.
func (r *CalendarRepository) ListCalendarsForUser(ctx context.Context, userID string) ([]persistence.Calendar, error) {
	if userID == "" {
		return nil, nil
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+calendarColumns+`
		FROM calendars
		WHERE owner_id = ?
		   OR id IN (SELECT calendar_id FROM calendar_members WHERE user_id = ?)
		ORDER BY created_at ASC, rowid ASC
	`, userID, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var (
		calendars []persistence.Calendar
		ids       []string
	)
	for rows.Next() {
		calendar, err := r.scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, calendar)
		ids = append(ids, calendar.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	// Release the connection before the member query; the pool may hold only one.
	rows.Close()

	members, err := r.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range calendars {
		calendars[i].Members = members[calendars[i].ID]
	}
	return calendars, nil
}

func (r *CalendarRepository) insertMembers(ctx context.Context, tx *sql.Tx, calendar persistence.Calendar) error {
	for position, member := range calendar.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_members (calendar_id, user_id, role, position, added_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			calendar.ID,
			member.UserID,
			member.Role,
			position,
			formatTime(member.AddedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *CalendarRepository) loadMembers(ctx context.Context, calendarIDs []string) (map[string][]persistence.CalendarMember, error) {
	out := make(map[string][]persistence.CalendarMember, len(calendarIDs))
	if len(calendarIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(calendarIDs))
	for i, id := range calendarIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT calendar_id, user_id, role, added_at
		FROM calendar_members
		WHERE calendar_id IN (`+placeholders(len(calendarIDs))+`)
		ORDER BY calendar_id, position ASC
	`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			calendarID, addedAt string
			member              persistence.CalendarMember
		)
		if err := rows.Scan(&calendarID, &member.UserID, &member.Role, &addedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if member.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, fmt.Errorf("failed to parse added_at: %w", err)
		}
		out[calendarID] = append(out[calendarID], member)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

func (r *CalendarRepository) scanCalendar(row rowScanner) (persistence.Calendar, error) {
	var (
		calendar             persistence.Calendar
		createdAt, updatedAt string
	)
	if err := row.Scan(&calendar.ID, &calendar.OwnerID, &calendar.Name, &calendar.Color, &createdAt, &updatedAt); err != nil {
		return persistence.Calendar{}, r.mapper.MapError(err)
	}

	var err error
	if calendar.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Calendar{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if calendar.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Calendar{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return calendar, nil
}
