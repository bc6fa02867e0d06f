package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldtrack/mold-asset-tracker/internal/model"
	"github.com/moldtrack/mold-asset-tracker/internal/queue"
)

// Latitude displacements chosen around the 1.0 km threshold: one degree of
// latitude is ~111.195 km, so these deltas sit at ~0.999 km and ~1.001 km.
const (
	deltaLatBelowThreshold = 0.999 / 111.1949
	deltaLatAboveThreshold = 1.001 / 111.1949
)

type fakeSampleStore struct {
	nextID  uint64
	samples []model.GPSSample
}

func (f *fakeSampleStore) Insert(ctx context.Context, moldID uint64, lat, lng float64, recordedAt time.Time) (model.GPSSample, error) {
	f.nextID++
	s := model.GPSSample{ID: f.nextID, MoldID: moldID, Latitude: lat, Longitude: lng, RecordedAt: recordedAt.UTC()}
	f.samples = append(f.samples, s)
	return s, nil
}

func (f *fakeSampleStore) PreviousBefore(ctx context.Context, moldID uint64, recordedAt time.Time, id uint64) (model.GPSSample, error) {
	var best *model.GPSSample
	for i := range f.samples {
		s := &f.samples[i]
		if s.MoldID != moldID {
			continue
		}
		if s.RecordedAt.After(recordedAt) || (s.RecordedAt.Equal(recordedAt) && s.ID >= id) {
			continue
		}
		if best == nil || s.RecordedAt.After(best.RecordedAt) ||
			(s.RecordedAt.Equal(best.RecordedAt) && s.ID > best.ID) {
			best = s
		}
	}
	if best == nil {
		return model.GPSSample{}, sql.ErrNoRows
	}
	return *best, nil
}

type fakeAlertStore struct {
	nextID uint64
	alerts []model.Alert
	err    error
}

func (f *fakeAlertStore) Create(ctx context.Context, a model.Alert) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	a.ID = f.nextID
	f.alerts = append(f.alerts, a)
	return f.nextID, nil
}

type fakeNotificationStore struct {
	created []uint64 // recipient user ids
	err     error
}

func (f *fakeNotificationStore) Create(ctx context.Context, userID, alertID uint64, title, body string) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, userID)
	return nil
}

type fakeAudience struct {
	users []model.User
}

func (f *fakeAudience) ListActiveByRoles(ctx context.Context, roles ...string) ([]model.User, error) {
	return f.users, nil
}

type blockedLocker struct{}

func (blockedLocker) Acquire(ctx context.Context, moldID uint64) (func(), bool) { return nil, false }

type driftFixture struct {
	det       *DriftDetector
	samples   *fakeSampleStore
	alerts    *fakeAlertStore
	notes     *fakeNotificationStore
	published []queue.AlertRaisedEvent
}

func newDriftFixture() *driftFixture {
	fx := &driftFixture{
		samples: &fakeSampleStore{},
		alerts:  &fakeAlertStore{},
		notes:   &fakeNotificationStore{},
	}
	audience := &fakeAudience{users: []model.User{
		{ID: 1, Role: model.RoleAdmin},
		{ID: 2, Role: model.RoleDeveloper},
	}}
	fx.det = NewDriftDetector(fx.samples, fx.alerts, fx.notes, audience, NewRedisAssetLocker(nil))
	fx.det.Publish = func(ctx context.Context, event queue.AlertRaisedEvent) error {
		fx.published = append(fx.published, event)
		return nil
	}
	return fx
}

var testMold = model.Mold{ID: 42, Code: "M-0042", Name: "Bumper mold"}

func TestFirstSampleNeverAlerts(t *testing.T) {
	fx := newDriftFixture()
	err := fx.det.RecordSample(context.Background(), testMold, 35.0, 139.0, time.Now())
	require.NoError(t, err)
	assert.Len(t, fx.samples.samples, 1)
	assert.Empty(t, fx.alerts.alerts)
}

func TestDriftThreshold(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("just under one km", func(t *testing.T) {
		fx := newDriftFixture()
		require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0, 139.0, base))
		require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0+deltaLatBelowThreshold, 139.0, base.Add(time.Minute)))
		assert.Empty(t, fx.alerts.alerts)
		assert.Empty(t, fx.published)
	})

	t.Run("just over one km", func(t *testing.T) {
		fx := newDriftFixture()
		require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0, 139.0, base))
		require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0+deltaLatAboveThreshold, 139.0, base.Add(time.Minute)))
		require.Len(t, fx.alerts.alerts, 1)
		a := fx.alerts.alerts[0]
		assert.Equal(t, model.AlertTypeLocationDrift, a.AlertType)
		assert.Equal(t, "high", a.Severity)
		assert.Contains(t, a.Message, "M-0042")
		assert.False(t, a.IsResolved)
	})
}

func TestDriftComparesAgainstImmediatePredecessor(t *testing.T) {
	fx := newDriftFixture()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// Three samples in a line, each step under the threshold even though the
	// total displacement exceeds it: no alert may fire.
	for i := 0; i < 3; i++ {
		lat := 35.0 + float64(i)*deltaLatBelowThreshold
		require.NoError(t, fx.det.RecordSample(ctx, testMold, lat, 139.0, base.Add(time.Duration(i)*time.Minute)))
	}
	assert.Empty(t, fx.alerts.alerts)
}

func TestInvalidCoordinatesSkipped(t *testing.T) {
	fx := newDriftFixture()
	err := fx.det.RecordSample(context.Background(), testMold, 95.0, 139.0, time.Now())
	require.NoError(t, err)
	assert.Empty(t, fx.samples.samples, "invalid samples are not recorded")
	assert.Empty(t, fx.alerts.alerts)
}

func TestNotificationFanOut(t *testing.T) {
	fx := newDriftFixture()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0, 139.0, base))
	require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0+deltaLatAboveThreshold, 139.0, base.Add(time.Minute)))

	assert.Equal(t, []uint64{1, 2}, fx.notes.created, "one notification per admin/developer")
	require.Len(t, fx.published, 1)
	assert.Equal(t, 2, fx.published[0].NotifyCount)
	assert.InDelta(t, 1.001, fx.published[0].DistanceKm, 0.01)
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	fx := newDriftFixture()
	fx.notes.err = errors.New("notifications table unavailable")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0, 139.0, base))
	err := fx.det.RecordSample(ctx, testMold, 35.0+deltaLatAboveThreshold, 139.0, base.Add(time.Minute))

	require.NoError(t, err, "fan-out failure must not fail the triggering request")
	assert.Len(t, fx.alerts.alerts, 1, "alert write survives notification failure")
	assert.Len(t, fx.samples.samples, 2, "sample write survives notification failure")
}

func TestLockContentionRecordsWithoutEvaluation(t *testing.T) {
	fx := newDriftFixture()
	fx.det.Lock = blockedLocker{}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, fx.det.RecordSample(ctx, testMold, 35.0, 139.0, base))
	require.NoError(t, fx.det.RecordSample(ctx, testMold, 36.0, 139.0, base.Add(time.Minute)))

	assert.Len(t, fx.samples.samples, 2, "history is kept even when serialization fails")
	assert.Empty(t, fx.alerts.alerts, "no unserialized evaluation")
}
