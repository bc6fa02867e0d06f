package repository

import (
	"context"
	"database/sql"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// AlertRepo provides access to the alerts table.
type AlertRepo struct {
	db *sql.DB
}

// NewAlertRepo returns a new AlertRepo bound to the provided database.
func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

// Create inserts an alert and returns its ID.
func (r *AlertRepo) Create(ctx context.Context, a model.Alert) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (mold_id, alert_type, severity, message, metadata, is_resolved)
		 VALUES (?,?,?,?,?,0)`,
		a.MoldID, a.AlertType, a.Severity, a.Message, a.Metadata)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListUnresolved returns unresolved alerts, newest first.
func (r *AlertRepo) ListUnresolved(ctx context.Context) ([]model.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mold_id, alert_type, severity, message, metadata, is_resolved, created_at
		 FROM alerts WHERE is_resolved = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.MoldID, &a.AlertType, &a.Severity, &a.Message, &a.Metadata, &a.IsResolved, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Resolve marks an alert resolved.  Returns ErrAlertNotFound when the id
// matches no row.
func (r *AlertRepo) Resolve(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET is_resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either absent or already resolved; distinguish for the handler.
		var exists int
		if scanErr := r.db.QueryRowContext(ctx, `SELECT 1 FROM alerts WHERE id = ? LIMIT 1`, id).Scan(&exists); scanErr == sql.ErrNoRows {
			return ErrAlertNotFound
		} else if scanErr != nil {
			return scanErr
		}
	}
	return nil
}
