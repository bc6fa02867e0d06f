package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
	"github.com/moldtrack/mold-asset-tracker/internal/repository"
)

// fakeSessionStore is an in-memory SessionStore mirroring the repository's
// supersede-then-create semantics.
type fakeSessionStore struct {
	nextID   uint64
	sessions map[string]*model.WorkSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*model.WorkSession{}}
}

func (f *fakeSessionStore) Issue(ctx context.Context, userID, moldID uint64, qrCode, deviceInfo string, issuedAt, expiresAt time.Time) (model.WorkSession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.MoldID == moldID && s.IsActive {
			s.IsActive = false
		}
	}
	f.nextID++
	s := model.WorkSession{
		ID:         f.nextID,
		Token:      fmt.Sprintf("token-%d", f.nextID),
		UserID:     userID,
		MoldID:     moldID,
		QRCode:     qrCode,
		DeviceInfo: deviceInfo,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		IsActive:   true,
	}
	f.sessions[s.Token] = &s
	return s, nil
}

func (f *fakeSessionStore) GetByToken(ctx context.Context, token string) (model.WorkSession, error) {
	s, ok := f.sessions[token]
	if !ok {
		return model.WorkSession{}, repository.ErrSessionNotFound
	}
	return *s, nil
}

func (f *fakeSessionStore) Deactivate(ctx context.Context, token string) error {
	s, ok := f.sessions[token]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.IsActive = false
	return nil
}

func (f *fakeSessionStore) ListActiveByUser(ctx context.Context, userID uint64) ([]model.WorkSession, error) {
	var out []model.WorkSession
	now := time.Now().UTC()
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive && now.Before(s.ExpiresAt) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) activeCount(userID, moldID uint64) int {
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.MoldID == moldID && s.IsActive {
			n++
		}
	}
	return n
}

type fakeMoldStore struct {
	molds map[string]model.Mold
}

func (f *fakeMoldStore) GetByCode(ctx context.Context, code string) (model.Mold, error) {
	m, ok := f.molds[code]
	if !ok {
		return model.Mold{}, repository.ErrMoldNotFound
	}
	return m, nil
}

type recorderCall struct {
	mold model.Mold
	lat  float64
	lng  float64
}

type fakeRecorder struct {
	calls []recorderCall
}

func (f *fakeRecorder) RecordSample(ctx context.Context, mold model.Mold, lat, lng float64, recordedAt time.Time) error {
	f.calls = append(f.calls, recorderCall{mold: mold, lat: lat, lng: lng})
	return nil
}

func newTestSessionService() (*SessionService, *fakeSessionStore, *fakeRecorder) {
	store := newFakeSessionStore()
	molds := &fakeMoldStore{molds: map[string]model.Mold{
		"M-0042": {ID: 42, Code: "M-0042", Name: "Bumper mold"},
	}}
	rec := &fakeRecorder{}
	return NewSessionService(store, molds, rec), store, rec
}

func TestIssueSupersedesActiveSessions(t *testing.T) {
	svc, store, _ := newTestSessionService()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, store.activeCount(7, 42), "at most one active session per (user, mold) pair")
	assert.Len(t, store.sessions, 4, "superseded sessions are kept, not deleted")
}

func TestIssueDifferentUsersIndependent(t *testing.T) {
	svc, store, _ := newTestSessionService()
	ctx := context.Background()

	_, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
	require.NoError(t, err)
	_, _, err = svc.Issue(ctx, 8, "M-0042", "tablet-b", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.activeCount(7, 42))
	assert.Equal(t, 1, store.activeCount(8, 42))
}

func TestIssueNormalizesQRAndRejectsEmpty(t *testing.T) {
	svc, _, _ := newTestSessionService()
	ctx := context.Background()

	session, mold, err := svc.Issue(ctx, 7, "https://app.example.com/molds/M-0042", "tablet-a", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), mold.ID)
	assert.Equal(t, "M-0042", session.QRCode)

	_, _, err = svc.Issue(ctx, 7, "   ", "tablet-a", nil)
	assert.ErrorIs(t, err, ErrBadQRCode)

	_, _, err = svc.Issue(ctx, 7, "M-9999", "tablet-a", nil)
	assert.ErrorIs(t, err, repository.ErrMoldNotFound)
}

func TestIssueRecordsGPSSideEffect(t *testing.T) {
	svc, _, rec := newTestSessionService()
	ctx := context.Background()

	gps := &GPSReading{Latitude: 35.1, Longitude: 139.2, Accuracy: 12}
	_, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", gps)
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, 35.1, rec.calls[0].lat)

	// Invalid coordinates never reach the recorder.
	_, _, err = svc.Issue(ctx, 7, "M-0042", "tablet-a", &GPSReading{Latitude: 120, Longitude: 0})
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestValidateBoundary(t *testing.T) {
	svc, store, _ := newTestSessionService()
	ctx := context.Background()

	issued := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return issued }
	session, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
	require.NoError(t, err)
	expiry := session.ExpiresAt
	require.Equal(t, issued.Add(DefaultSessionTTL), expiry)

	// One second before expiry: valid.
	svc.Now = func() time.Time { return expiry.Add(-time.Second) }
	got, err := svc.Validate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	// One second after expiry: invalid, with the flag untouched.
	svc.Now = func() time.Time { return expiry.Add(time.Second) }
	_, err = svc.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.True(t, store.sessions[session.Token].IsActive, "read-only validation must not flip is_active")
}

func TestValidateDistinguishesNotFound(t *testing.T) {
	svc, _, _ := newTestSessionService()
	ctx := context.Background()

	_, err := svc.Validate(ctx, "no-such-token")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	session, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, session.Token))

	_, err = svc.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestEndIsIdempotent(t *testing.T) {
	svc, _, _ := newTestSessionService()
	ctx := context.Background()

	session, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
	require.NoError(t, err)

	require.NoError(t, svc.End(ctx, session.Token))
	require.NoError(t, svc.End(ctx, session.Token))
	assert.ErrorIs(t, svc.End(ctx, "missing"), repository.ErrSessionNotFound)
}

func TestListActiveExcludesExpired(t *testing.T) {
	svc, store, _ := newTestSessionService()
	ctx := context.Background()

	session, _, err := svc.Issue(ctx, 7, "M-0042", "tablet-a", nil)
	require.NoError(t, err)

	// Force the stored expiry into the past while keeping the flag true.
	store.sessions[session.Token].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	active, err := svc.ListActive(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, active, "timed-out rows are excluded lazily even with is_active still true")
}
