package postgres

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
// transaction. The conditional update locks the event row, so concurrent
// claims are applied one after another and each re-checks the capacity.
func (s *Store) RegisterForEvent(ctx context.Context, r *models.Registration) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = $1`, r.EventID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %s: %w", r.EventID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up event: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2`, r.UserID, r.EventID).Scan(&exists)
	if err == nil {
		return models.ErrAlreadyRegistered
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to look up registration: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET registration_count = registration_count + 1
		WHERE id = $1 AND registration_count < capacity
	`, r.EventID)
	if err != nil {
		return fmt.Errorf("failed to update event capacity: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// The event may have been deleted while this claim waited on its lock.
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = $1`, r.EventID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event %s: %w", r.EventID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up event: %w", err)
		}

		// A concurrent request from the same user may have taken the last seat.
		// This statement sees rows committed while the UPDATE waited.
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2`, r.UserID, r.EventID).Scan(&exists)
		if err == nil {
			return models.ErrAlreadyRegistered
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up registration: %w", err)
		}
		return models.ErrCapacityExceeded
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO registrations (id, user_id, event_id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.UserID, r.EventID, r.Name, r.Email, r.Phone, r.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	ev, err := getEvent(ctx, tx, r.EventID, false)
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
func (s *Store) Unregister(ctx context.Context, registrationID, requesterID string) (*models.Registration, error) {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var reg models.Registration
	err = tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations r WHERE r.id = $1 FOR UPDATE`, registrationID,
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

	// events is written before registrations, the same order RegisterForEvent
	// and ReconcileCounts take their locks in.
	_, err = tx.ExecContext(ctx, `
		UPDATE events
		SET registration_count = GREATEST(registration_count - 1, 0)
		WHERE id = $1
	`, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to release seat: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete registration: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("registration %s: %w", registrationID, models.ErrNotFound)
	}

	ev, err := getEvent(ctx, tx, reg.EventID, false)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.Event = ev
	return &reg, nil
}

func (s *Store) ListRegistrationsByUser(ctx context.Context, userID string) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + `, ` + eventColumns + `
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN users o ON o.id = e.organizer_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC`

	rows, err := s.QueryContext(ctx, q, userID)
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
		reg.CreatedAt = reg.CreatedAt.UTC()
		reg.Event = ev.event()
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	q := `SELECT ` + registrationColumns + `, u.name, u.email
		FROM registrations r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1
		ORDER BY r.created_at DESC`

	rows, err := s.QueryContext(ctx, q, eventID)
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
		reg.CreatedAt = reg.CreatedAt.UTC()
		if userName.Valid {
			reg.User = &models.UserSummary{ID: reg.UserID, Name: userName.String, Email: email.String}
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}

// ReconcileCounts rewrites registration_count for every event whose count has
// drifted from its live registration rows and returns how many were repaired.
// Every writer updates events before registrations, so holding events in
// SHARE ROW EXCLUSIVE mode freezes both tables for the duration.
func (s *Store) ReconcileCounts(ctx context.Context) (int64, error) {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE events IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("failed to lock events: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE events e
		SET registration_count = live.n
		FROM (
			SELECT ev.id, COUNT(r.id) AS n
			FROM events ev
			LEFT JOIN registrations r ON r.event_id = ev.id
			GROUP BY ev.id
		) live
		WHERE e.id = live.id AND e.registration_count <> live.n
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to repair counts: %w", err)
	}

	repaired, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tx: %w", err)
	}
	return repaired, nil
}
