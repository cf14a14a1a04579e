package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventhub/models"
)

const eventColumns = `e.id, e.title, e.description, e.category, e.date, e.time, e.location, e.image,
	e.capacity, e.registration_count, e.organizer_id, e.status, e.created_at, e.updated_at,
	o.name, o.email`

const selectEvents = `SELECT ` + eventColumns + ` FROM events e LEFT JOIN users o ON o.id = e.organizer_id`

// eventRow collects the scan destinations of eventColumns.
type eventRow struct {
	ev       models.Event
	orgName  sql.NullString
	orgEmail sql.NullString
}

func (r *eventRow) dest() []any {
	e := &r.ev
	return []any{
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Date, &e.Time, &e.Location, &e.Image,
		&e.Capacity, &e.RegistrationCount, &e.OrganizerID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		&r.orgName, &r.orgEmail,
	}
}

func (r *eventRow) event() *models.Event {
	e := r.ev
	if r.orgName.Valid {
		e.Organizer = &models.UserSummary{ID: e.OrganizerID, Name: r.orgName.String, Email: r.orgEmail.String}
	}
	return &e
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEvent(ctx context.Context, q querier, id string) (*models.Event, error) {
	var row eventRow
	err := q.QueryRowContext(ctx, selectEvents+` WHERE e.id = ?`, id).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return row.event(), nil
}

// CreateEvent inserts e with a zero registration count.
func (db *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, category, date, time, location, image,
		capacity, registration_count, organizer_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`

	e.RegistrationCount = 0
	_, err := db.ExecContext(ctx, q, e.ID, e.Title, e.Description, e.Category, e.Date.UTC(), e.Time,
		e.Location, e.Image, e.Capacity, e.OrganizerID, e.Status, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return getEvent(ctx, db.DB, id)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListEvents returns events newest first, narrowed by f.
func (db *DB) ListEvents(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	q := selectEvents

	var (
		where []string
		args  []any
	)

	if f.Category != "" {
		where = append(where, `e.category = ?`)
		args = append(args, f.Category)
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		where = append(where, `(LOWER(e.title) LIKE ? ESCAPE '\' OR LOWER(e.description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}

	q += ` ORDER BY e.created_at DESC`

	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, f.Offset)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		events = append(events, *row.event())
	}
	return events, rows.Err()
}

// UpdateEvent applies p to the event when organizerID owns it. The capacity
// can not drop below the live registration count.
func (db *DB) UpdateEvent(ctx context.Context, id, organizerID string, p models.EventPatch) (*models.Event, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	ev, err := getEvent(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != organizerID {
		return nil, fmt.Errorf("update event %s: %w", id, models.ErrForbidden)
	}

	p.Apply(ev)
	ev.UpdatedAt = time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, category = ?, date = ?, time = ?, location = ?,
			image = ?, capacity = ?, status = ?, updated_at = ?
		WHERE id = ? AND registration_count <= ?
	`, ev.Title, ev.Description, ev.Category, ev.Date.UTC(), ev.Time, ev.Location,
		ev.Image, ev.Capacity, ev.Status, ev.UpdatedAt, id, ev.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: capacity %d is below the %d current registrations",
			models.ErrInvalidInput, ev.Capacity, ev.RegistrationCount)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}
	return ev, nil
}

// DeleteEvent removes the event and its registrations when organizerID owns it.
func (db *DB) DeleteEvent(ctx context.Context, id, organizerID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	ev, err := getEvent(ctx, tx, id)
	if err != nil {
		return err
	}
	if ev.OrganizerID != organizerID {
		return fmt.Errorf("delete event %s: %w", id, models.ErrForbidden)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete registrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}
