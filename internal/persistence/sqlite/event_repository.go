package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/calshare/internal/persistence"
)

const eventColumns = `id, calendar_id, owner_id, type, title, start_at, end_at, all_day, reminder_at, due_date, location, description, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateEvent inserts a new event
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.CalendarID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.CalendarID,
		event.OwnerID,
		event.Type,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		formatTimePtr(event.ReminderAt),
		formatTimePtr(event.DueDate),
		nullString(event.Location),
		nullString(event.Description),
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateEvent overwrites every mutable column of an event
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE events
		SET calendar_id = ?, type = ?, title = ?, start_at = ?, end_at = ?, all_day = ?,
		    reminder_at = ?, due_date = ?, location = ?, description = ?, updated_at = ?
		WHERE id = ?
	`,
		event.CalendarID,
		event.Type,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		formatTimePtr(event.ReminderAt),
		formatTimePtr(event.DueDate),
		nullString(event.Location),
		nullString(event.Description),
		formatTime(event.UpdatedAt),
		event.ID,
	)
	return requireAffected(result, err, r.mapper)
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return r.scanEvent(row)
}

// DeleteEvent removes an event by ID
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return requireAffected(result, err, r.mapper)
}

// ListEvents returns events of the given calendars overlapping the filter
// window, ordered by start. Zero-length events (reminders, tasks) match when
// they fall inside the window.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	if len(filter.CalendarIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(filter.CalendarIDs)+3)
	for _, id := range filter.CalendarIDs {
		args = append(args, id)
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE calendar_id IN (` + placeholders(len(filter.CalendarIDs)) + `)`
	if !filter.End.IsZero() {
		query += ` AND start_at < ?`
		args = append(args, formatTime(filter.End))
	}
	if !filter.Start.IsZero() {
		query += ` AND (end_at > ? OR (end_at = start_at AND start_at >= ?))`
		args = append(args, formatTime(filter.Start), formatTime(filter.Start))
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

func (r *EventRepository) scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                                   persistence.Event
		start, end, createdAt, updatedAt        string
		reminderAt, dueDate, location, describe sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&event.CalendarID,
		&event.OwnerID,
		&event.Type,
		&event.Title,
		&start,
		&end,
		&event.AllDay,
		&reminderAt,
		&dueDate,
		&location,
		&describe,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}

	if event.Start, err = parseTime(start); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if event.ReminderAt, err = parseTimePtr(reminderAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse reminder_at: %w", err)
	}
	if event.DueDate, err = parseTimePtr(dueDate); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse due_date: %w", err)
	}
	event.Location = stringPtr(location)
	event.Description = stringPtr(describe)
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return event, nil
}
