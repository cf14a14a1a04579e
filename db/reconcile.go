package db

import (
	"context"
	"fmt"
)

// ReconcileCounts rewrites registration_count for every event whose count has
// drifted from its live registration rows and returns how many were repaired.
func (db *DB) ReconcileCounts(ctx context.Context) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.id, COUNT(r.id)
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		GROUP BY e.id, e.registration_count
		HAVING e.registration_count <> COUNT(r.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find drifted events: %w", err)
	}

	type drifted struct {
		eventID string
		live    int
	}
	var found []drifted
	for rows.Next() {
		var d drifted
		if err := rows.Scan(&d.eventID, &d.live); err != nil {
			rows.Close()
			return 0, err
		}
		found = append(found, d)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(found) == 0 {
		return 0, tx.Commit()
	}

	for _, d := range found {
		_, err := tx.ExecContext(ctx, `UPDATE events SET registration_count = ? WHERE id = ?`, d.live, d.eventID)
		if err != nil {
			return 0, fmt.Errorf("failed to repair event %s: %w", d.eventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tx: %w", err)
	}
	return int64(len(found)), nil
}
