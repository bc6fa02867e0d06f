package repository

import (
	"context"
	"database/sql"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// MoldRepo provides read access to the molds registry.  The business CRUD
// over molds lives in the application layer; this service only resolves QR
// codes and serves geofence parameters.
type MoldRepo struct {
	db *sql.DB
}

// NewMoldRepo returns a new MoldRepo bound to the provided database.
func NewMoldRepo(db *sql.DB) *MoldRepo { return &MoldRepo{db: db} }

func scanMold(row *sql.Row) (model.Mold, error) {
	var (
		m       model.Mold
		lat     sql.NullFloat64
		lng     sql.NullFloat64
		radiusM sql.NullFloat64
	)
	err := row.Scan(&m.ID, &m.Code, &m.Name, &lat, &lng, &radiusM, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Mold{}, ErrMoldNotFound
	}
	if err != nil {
		return model.Mold{}, err
	}
	if lat.Valid {
		m.AllowedLat = &lat.Float64
	}
	if lng.Valid {
		m.AllowedLng = &lng.Float64
	}
	if radiusM.Valid {
		m.AllowedRadiusM = &radiusM.Float64
	}
	return m, nil
}

// GetByCode fetches a mold by its canonical asset code (the token embedded
// in QR labels).  Returns ErrMoldNotFound when no row matches.
func (r *MoldRepo) GetByCode(ctx context.Context, code string) (model.Mold, error) {
	return scanMold(r.db.QueryRowContext(ctx,
		`SELECT id, code, name, allowed_lat, allowed_lng, allowed_radius_m, created_at
		 FROM molds WHERE code = ? LIMIT 1`, code))
}

// GetByID fetches a mold by id.  Returns ErrMoldNotFound when no row matches.
func (r *MoldRepo) GetByID(ctx context.Context, id uint64) (model.Mold, error) {
	return scanMold(r.db.QueryRowContext(ctx,
		`SELECT id, code, name, allowed_lat, allowed_lng, allowed_radius_m, created_at
		 FROM molds WHERE id = ? LIMIT 1`, id))
}
