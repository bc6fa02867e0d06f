package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// SampleRepo provides access to the append-only gps_samples table.
type SampleRepo struct {
	db *sql.DB
}

// NewSampleRepo returns a new SampleRepo bound to the provided database.
func NewSampleRepo(db *sql.DB) *SampleRepo { return &SampleRepo{db: db} }

// Insert appends a GPS sample for a mold and returns the stored record.
// Coordinates must already be validated by the caller; the repository does
// not re-check them.
func (r *SampleRepo) Insert(ctx context.Context, moldID uint64, lat, lng float64, recordedAt time.Time) (model.GPSSample, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO gps_samples (mold_id, latitude, longitude, recorded_at) VALUES (?,?,?,?)`,
		moldID, lat, lng, recordedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return model.GPSSample{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.GPSSample{}, err
	}
	return model.GPSSample{
		ID:         uint64(id),
		MoldID:     moldID,
		Latitude:   lat,
		Longitude:  lng,
		RecordedAt: recordedAt.UTC(),
	}, nil
}

// PreviousBefore returns the newest sample for the mold that is strictly
// older than the given (recordedAt, id) reference, or sql.ErrNoRows when the
// reference is the mold's first known position.  Ordering by (recorded_at,
// id) rather than a positional offset keeps the comparison correct when two
// devices insert samples for the same mold near-simultaneously: ties on
// recorded_at are broken by insert id.
func (r *SampleRepo) PreviousBefore(ctx context.Context, moldID uint64, recordedAt time.Time, id uint64) (model.GPSSample, error) {
	var s model.GPSSample
	err := r.db.QueryRowContext(ctx,
		`SELECT id, mold_id, latitude, longitude, recorded_at
		 FROM gps_samples
		 WHERE mold_id = ?
		   AND (recorded_at < ? OR (recorded_at = ? AND id < ?))
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		moldID,
		recordedAt.UTC().Format("2006-01-02 15:04:05"),
		recordedAt.UTC().Format("2006-01-02 15:04:05"),
		id).Scan(&s.ID, &s.MoldID, &s.Latitude, &s.Longitude, &s.RecordedAt)
	if err != nil {
		return model.GPSSample{}, err
	}
	return s, nil
}

// ListByMold returns the mold's sample history, newest first, capped at
// limit.  Used by the location-history endpoint.
func (r *SampleRepo) ListByMold(ctx context.Context, moldID uint64, limit int) ([]model.GPSSample, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mold_id, latitude, longitude, recorded_at
		 FROM gps_samples WHERE mold_id = ?
		 ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		moldID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []model.GPSSample
	for rows.Next() {
		var s model.GPSSample
		if err := rows.Scan(&s.ID, &s.MoldID, &s.Latitude, &s.Longitude, &s.RecordedAt); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
