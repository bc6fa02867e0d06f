package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/geo"
	"github.com/moldtrack/mold-asset-tracker/internal/model"
	"github.com/moldtrack/mold-asset-tracker/internal/utils"
)

// DefaultSessionTTL is how long a QR-issued work session stays valid.
const DefaultSessionTTL = 8 * time.Hour

// ErrSessionInvalid is returned when a session token matched a row but the
// session is no longer usable (ended, superseded, or past expiry).  It is a
// distinct outcome from repository.ErrSessionNotFound so the client can tell
// "your session expired, rescan" apart from "unknown session".
var ErrSessionInvalid = errors.New("session invalid or expired")

// ErrBadQRCode is returned when a scanned payload carries no asset code.
var ErrBadQRCode = errors.New("qr code carries no asset code")

// SessionStore is the slice of SessionRepo the service needs.
type SessionStore interface {
	Issue(ctx context.Context, userID, moldID uint64, qrCode, deviceInfo string, issuedAt, expiresAt time.Time) (model.WorkSession, error)
	GetByToken(ctx context.Context, token string) (model.WorkSession, error)
	Deactivate(ctx context.Context, token string) error
	ListActiveByUser(ctx context.Context, userID uint64) ([]model.WorkSession, error)
}

// MoldStore resolves QR codes to registry rows.
type MoldStore interface {
	GetByCode(ctx context.Context, code string) (model.Mold, error)
}

// SampleRecorder is the drift-detection hook run as a side effect of
// issuance when the scan carried a GPS reading.
type SampleRecorder interface {
	RecordSample(ctx context.Context, mold model.Mold, lat, lng float64, recordedAt time.Time) error
}

// GPSReading is an optional device position attached to a scan.  Accuracy is
// advisory only and takes no part in threshold math.
type GPSReading struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	RecordedAt time.Time
}

// SessionService implements the QR session lifecycle: issue on scan with
// supersession, read-only validation, idempotent end, and lazy-expiry
// listing.
type SessionService struct {
	Sessions SessionStore
	Molds    MoldStore
	Drift    SampleRecorder
	TTL      time.Duration
	Now      func() time.Time
}

// NewSessionService wires a session service with the default TTL and wall
// clock.  Drift may be nil when no detector is configured.
func NewSessionService(sessions SessionStore, molds MoldStore, drift SampleRecorder) *SessionService {
	return &SessionService{
		Sessions: sessions,
		Molds:    molds,
		Drift:    drift,
		TTL:      DefaultSessionTTL,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue normalizes the QR payload, resolves the mold, supersedes any active
// sessions for the (user, mold) pair and creates a fresh one expiring TTL
// from now.  When the scan carries a valid GPS reading it is recorded and
// drift-evaluated as a best-effort side effect: a failure there is logged
// and never fails the issuance.
func (s *SessionService) Issue(ctx context.Context, userID uint64, rawQR, deviceInfo string, gps *GPSReading) (model.WorkSession, model.Mold, error) {
	code := utils.NormalizeQR(rawQR)
	if code == "" {
		return model.WorkSession{}, model.Mold{}, ErrBadQRCode
	}
	mold, err := s.Molds.GetByCode(ctx, code)
	if err != nil {
		return model.WorkSession{}, model.Mold{}, err
	}

	now := s.Now()
	session, err := s.Sessions.Issue(ctx, userID, mold.ID, code, deviceInfo, now, now.Add(s.TTL))
	if err != nil {
		return model.WorkSession{}, model.Mold{}, err
	}

	if gps != nil && s.Drift != nil && geo.Valid(gps.Latitude, gps.Longitude) {
		recordedAt := gps.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}
		if err := s.Drift.RecordSample(ctx, mold, gps.Latitude, gps.Longitude, recordedAt); err != nil {
			log.Printf("session: mold=%s gps side effect failed: %v", mold.Code, err)
		}
	}
	return session, mold, nil
}

// Validate fetches the session by token and evaluates validity without
// mutating anything: expiry is a derived fact, the stored flag is not
// flipped on a read.  Returns repository.ErrSessionNotFound for unknown
// tokens and ErrSessionInvalid (with the session) for dead ones.
func (s *SessionService) Validate(ctx context.Context, token string) (model.WorkSession, error) {
	session, err := s.Sessions.GetByToken(ctx, token)
	if err != nil {
		return model.WorkSession{}, err
	}
	if !session.ValidAt(s.Now()) {
		return session, ErrSessionInvalid
	}
	return session, nil
}

// End deactivates the session unconditionally.  Repeated calls succeed: the
// underlying update is idempotent.  Unknown tokens surface
// repository.ErrSessionNotFound.
func (s *SessionService) End(ctx context.Context, token string) error {
	return s.Sessions.Deactivate(ctx, token)
}

// ListActive returns the user's currently usable sessions, excluding rows
// whose stored flag is still true but whose expiry has passed.
func (s *SessionService) ListActive(ctx context.Context, userID uint64) ([]model.WorkSession, error) {
	return s.Sessions.ListActiveByUser(ctx, userID)
}
