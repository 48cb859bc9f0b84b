package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foxxcyber/equiptrack/internal/models"
)

var ErrReconciliationNotFound = errors.New("reconciliation not found")

const runColumns = `id, user_id, label, mac_count, found_count, unmatched_count, invalid_count,
	duplicate_count, indexed, elapsed_ms, created_at`

func scanRun(row pgx.Row, run *models.ReconciliationRun) error {
	return row.Scan(
		&run.ID, &run.UserID, &run.Label, &run.MACCount, &run.FoundCount, &run.UnmatchedCount, &run.InvalidCount,
		&run.DuplicateCount, &run.Indexed, &run.ElapsedMS, &run.CreatedAt,
	)
}

// CreateReconciliationRun saves an outcome and one row per MAC in one transaction.
// Found MACs are stored first, by group, followed by unmatched ones.
func (db *DB) CreateReconciliationRun(ctx context.Context, userID int, label *string, outcome *models.ReconciliationOutcome) (*models.ReconciliationRunWithMACs, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	result := outcome.Result
	found := result.FoundCount()

	var runID int
	err = tx.QueryRow(ctx, `
		INSERT INTO reconciliation_runs (user_id, label, mac_count, found_count, unmatched_count, invalid_count,
		                                 duplicate_count, indexed, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, userID, label, found+len(result.Unmatched), found, len(result.Unmatched),
		len(outcome.Validation.Invalid), len(outcome.Validation.Duplicates), outcome.Indexed, outcome.ElapsedMS,
	).Scan(&runID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reconciliation run: %w", err)
	}

	rows := make([][]interface{}, 0, found+len(result.Unmatched))
	for _, g := range result.Groups {
		location := g.Location
		for _, mac := range g.MACs {
			rows = append(rows, []interface{}{runID, mac, string(models.MACStatusInStock), &location, len(rows)})
		}
	}
	for _, mac := range result.Unmatched {
		rows = append(rows, []interface{}{runID, mac, string(models.MACStatusUnmatched), nil, len(rows)})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"reconciliation_macs"},
		[]string{"run_id", "mac", "status", "location", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reconciliation MACs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return db.GetReconciliationRun(ctx, runID)
}

// GetReconciliationRun retrieves a run with its per-MAC outcomes
func (db *DB) GetReconciliationRun(ctx context.Context, id int) (*models.ReconciliationRunWithMACs, error) {
	run := &models.ReconciliationRunWithMACs{}

	err := scanRun(db.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM reconciliation_runs WHERE id = $1`, id), &run.ReconciliationRun)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReconciliationNotFound
		}
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, run_id, mac, status, location, position
		FROM reconciliation_macs
		WHERE run_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.MACs = []models.ReconciliationMAC{}
	for rows.Next() {
		var m models.ReconciliationMAC
		if err := rows.Scan(&m.ID, &m.RunID, &m.MAC, &m.Status, &m.Location, &m.Position); err != nil {
			return nil, err
		}
		run.MACs = append(run.MACs, m)
	}

	return run, rows.Err()
}

// ListReconciliationRuns returns a user's runs, newest first
func (db *DB) ListReconciliationRuns(ctx context.Context, params *models.ReconciliationListParams) ([]*models.ReconciliationRun, int, error) {
	var total int
	err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_runs WHERE user_id = $1`, params.UserID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM reconciliation_runs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, params.UserID, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []*models.ReconciliationRun{}
	for rows.Next() {
		run := &models.ReconciliationRun{}
		if err := scanRun(rows, run); err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}

	return runs, total, rows.Err()
}

// DeleteReconciliationRun deletes a run and its MAC rows
func (db *DB) DeleteReconciliationRun(ctx context.Context, id int) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM reconciliation_runs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrReconciliationNotFound
	}

	return nil
}
