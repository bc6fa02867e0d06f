package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
)

// SessionRepo provides data access to the work_sessions table.  Sessions are
// only ever inserted and flagged inactive, never deleted: the table doubles
// as the audit trail of field work.  All timestamp comparisons are performed
// in UTC.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// randomToken generates a random hexadecimal string from n bytes of secure
// random data.  Session tokens are opaque; the client correlates requests by
// echoing the token back, nothing is encoded inside it.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DeactivateForUserAndMold flips is_active off for every currently active
// session of the (user, mold) pair and returns how many rows changed.  It is
// called inside the issuance transaction so that a superseding scan never
// leaves two simultaneously active sessions.
func (r *SessionRepo) DeactivateForUserAndMold(ctx context.Context, tx *sql.Tx, userID, moldID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE work_sessions SET is_active = 0 WHERE user_id = ? AND mold_id = ? AND is_active = 1`,
		userID, moldID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateTx inserts a new active session within the provided transaction and
// returns the stored record.  The token is generated here so callers cannot
// accidentally reuse one.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID, moldID uint64, qrCode, deviceInfo string, issuedAt, expiresAt time.Time) (model.WorkSession, error) {
	token, err := randomToken(32)
	if err != nil {
		return model.WorkSession{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO work_sessions (token, user_id, mold_id, qr_code, device_info, issued_at, expires_at, is_active)
		 VALUES (?,?,?,?,?,?,?,1)`,
		token, userID, moldID, qrCode, deviceInfo,
		issuedAt.UTC().Format("2006-01-02 15:04:05"), expiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return model.WorkSession{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.WorkSession{}, err
	}
	return model.WorkSession{
		ID:         uint64(id),
		Token:      token,
		UserID:     userID,
		MoldID:     moldID,
		QRCode:     qrCode,
		DeviceInfo: deviceInfo,
		IssuedAt:   issuedAt.UTC(),
		ExpiresAt:  expiresAt.UTC(),
		IsActive:   true,
	}, nil
}

// GetByToken fetches a session by its opaque token.  Returns
// ErrSessionNotFound when no row matches; validity is not evaluated here.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (model.WorkSession, error) {
	var s model.WorkSession
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, user_id, mold_id, qr_code, device_info, issued_at, expires_at, is_active
		 FROM work_sessions WHERE token = ? LIMIT 1`,
		token).Scan(&s.ID, &s.Token, &s.UserID, &s.MoldID, &s.QRCode, &s.DeviceInfo, &s.IssuedAt, &s.ExpiresAt, &s.IsActive)
	if err == sql.ErrNoRows {
		return model.WorkSession{}, ErrSessionNotFound
	}
	if err != nil {
		return model.WorkSession{}, err
	}
	return s, nil
}

// Deactivate flips is_active off for the session with the given token.  The
// update is idempotent: ending an already ended session changes nothing and
// succeeds.  Returns ErrSessionNotFound when the token matches no row at all.
func (r *SessionRepo) Deactivate(ctx context.Context, token string) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM work_sessions WHERE token = ? LIMIT 1`, token).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE work_sessions SET is_active = 0 WHERE token = ?`, token)
	return err
}

// ListActiveByUser returns the user's sessions that are both flagged active
// and not yet past expiry.  Rows whose stored flag is still true but whose
// expires_at has passed are excluded lazily at query time.
func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]model.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token, user_id, mold_id, qr_code, device_info, issued_at, expires_at, is_active
		 FROM work_sessions
		 WHERE user_id = ? AND is_active = 1 AND expires_at > UTC_TIMESTAMP()
		 ORDER BY issued_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.WorkSession
	for rows.Next() {
		var s model.WorkSession
		if err := rows.Scan(&s.ID, &s.Token, &s.UserID, &s.MoldID, &s.QRCode, &s.DeviceInfo, &s.IssuedAt, &s.ExpiresAt, &s.IsActive); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Issue atomically supersedes every active session for the (user, mold)
// pair and inserts a fresh one.  Supersession and creation share one
// transaction so no interleaving can observe two simultaneously active
// sessions for the pair, and a crash between the two steps rolls both back.
func (r *SessionRepo) Issue(ctx context.Context, userID, moldID uint64, qrCode, deviceInfo string, issuedAt, expiresAt time.Time) (model.WorkSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WorkSession{}, err
	}
	if _, err := r.DeactivateForUserAndMold(ctx, tx, userID, moldID); err != nil {
		tx.Rollback()
		return model.WorkSession{}, err
	}
	s, err := r.CreateTx(ctx, tx, userID, moldID, qrCode, deviceInfo, issuedAt, expiresAt)
	if err != nil {
		tx.Rollback()
		return model.WorkSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.WorkSession{}, err
	}
	return s, nil
}
