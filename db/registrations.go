package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventhub/models"
)

const registrationColumns = `r.id, r.user_id, r.event_id, r.name, r.email, r.phone, r.created_at`

func registrationDest(r *models.Registration) []any {
	return []any{&r.ID, &r.UserID, &r.EventID, &r.Name, &r.Email, &r.Phone, &r.CreatedAt}
}

// RegisterForEvent inserts r and claims one seat of its event in a single
// transaction. The seat is claimed with a conditional update, so concurrent
// registrations can never push registration_count past capacity, and a failed
// insert rolls the claim back.
func (db *DB) RegisterForEvent(ctx context.Context, r *models.Registration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // Safe to call even if committed

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, r.EventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %s: %w", r.EventID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up event: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE user_id = ? AND event_id = ?`, r.UserID, r.EventID).Scan(&exists)
	if err == nil {
		return models.ErrAlreadyRegistered
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up registration: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registration_count = registration_count + 1
		WHERE id = ? AND registration_count < capacity
	`, r.EventID)
	if err != nil {
		return fmt.Errorf("failed to update event capacity: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrCapacityExceeded
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registrations (id, user_id, event_id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.EventID, r.Name, r.Email, r.Phone, r.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	ev, err := getEvent(ctx, tx, r.EventID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	r.Event = ev
	return nil
}

// Unregister deletes the registration owned by requesterID and releases its
// seat in the same transaction. The count never drops below zero.
func (db *DB) Unregister(ctx context.Context, registrationID, requesterID string) (*models.Registration, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var reg models.Registration
	err = tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations r WHERE r.id = ?`, registrationID,
	).Scan(registrationDest(&reg)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration %s: %w", registrationID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	if reg.UserID != requesterID {
		return nil, fmt.Errorf("registration %s: %w", registrationID, models.ErrForbidden)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete registration: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("registration %s: %w", registrationID, models.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE events
		SET registration_count = MAX(registration_count - 1, 0)
		WHERE id = ?
	`, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to release seat: %w", err)
	}

	ev, err := getEvent(ctx, tx, reg.EventID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	reg.Event = ev
	return &reg, nil
}

// ListRegistrationsByUser returns the user's registrations newest first with
// their events attached.
func (db *DB) ListRegistrationsByUser(ctx context.Context, userID string) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + `, ` + eventColumns + `
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN users o ON o.id = e.organizer_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC`

	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var (
			reg models.Registration
			ev  eventRow
		)
		if err := rows.Scan(append(registrationDest(&reg), ev.dest()...)...); err != nil {
			return nil, err
		}
		reg.Event = ev.event()
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// ListRegistrationsByEvent returns the event's registrations newest first with
// the registrant attached.
func (db *DB) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + `, u.name, u.email
		FROM registrations r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.event_id = ?
		ORDER BY r.created_at DESC`

	rows, err := db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var (
			reg             models.Registration
			userName, email sql.NullString
		)
		if err := rows.Scan(append(registrationDest(&reg), &userName, &email)...); err != nil {
			return nil, err
		}
		if userName.Valid {
			reg.User = &models.UserSummary{ID: reg.UserID, Name: userName.String, Email: email.String}
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// CountRegistrations returns the live number of registration rows for an event.
func (db *DB) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = ?`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}
