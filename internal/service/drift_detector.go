package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/geo"
	"github.com/moldtrack/mold-asset-tracker/internal/model"
	"github.com/moldtrack/mold-asset-tracker/internal/queue"
)

// DefaultDriftThresholdKm is the displacement between consecutive samples
// above which a mold is considered to have moved anomalously.
const DefaultDriftThresholdKm = 1.0

// SampleStore is the slice of SampleRepo the detector needs.
type SampleStore interface {
	Insert(ctx context.Context, moldID uint64, lat, lng float64, recordedAt time.Time) (model.GPSSample, error)
	PreviousBefore(ctx context.Context, moldID uint64, recordedAt time.Time, id uint64) (model.GPSSample, error)
}

// AlertStore is the slice of AlertRepo the detector needs.
type AlertStore interface {
	Create(ctx context.Context, a model.Alert) (uint64, error)
}

// NotificationStore is the slice of NotificationRepo the detector needs.
type NotificationStore interface {
	Create(ctx context.Context, userID, alertID uint64, title, body string) error
}

// AudienceStore lists the users who receive drift notifications.
type AudienceStore interface {
	ListActiveByRoles(ctx context.Context, roles ...string) ([]model.User, error)
}

// EventPublisher pushes an alert event onto the broker.  Failures are
// best-effort like every other fan-out step.
type EventPublisher func(ctx context.Context, event queue.AlertRaisedEvent) error

// DriftDetector records GPS samples and raises a location_drift alert when a
// mold's newest sample is further than ThresholdKm from its previous one.
// The compare step is serialized per mold through the AssetLocker.
type DriftDetector struct {
	Samples       SampleStore
	Alerts        AlertStore
	Notifications NotificationStore
	Users         AudienceStore
	Lock          AssetLocker
	Publish       EventPublisher
	ThresholdKm   float64
}

// NewDriftDetector wires a detector with the default threshold and the AMQP
// publisher.  Pass a nil redis client to NewRedisAssetLocker for tests.
func NewDriftDetector(samples SampleStore, alerts AlertStore, notes NotificationStore, users AudienceStore, lock AssetLocker) *DriftDetector {
	return &DriftDetector{
		Samples:       samples,
		Alerts:        alerts,
		Notifications: notes,
		Users:         users,
		Lock:          lock,
		Publish:       PublishAlertRaised,
		ThresholdKm:   DefaultDriftThresholdKm,
	}
}

// RecordSample validates and persists a GPS sample for the mold, then runs
// drift evaluation against the previous sample.  Invalid coordinates are
// skipped silently (no sample, no alert, nil error).  A failed sample insert
// is returned as a hard error; everything after the insert (alert creation,
// notification fan-out, broker publish) is best-effort and only logged.
func (d *DriftDetector) RecordSample(ctx context.Context, mold model.Mold, lat, lng float64, recordedAt time.Time) error {
	if !geo.Valid(lat, lng) {
		log.Printf("drift: mold=%s skipping invalid coordinates (%v,%v)", mold.Code, lat, lng)
		return nil
	}
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	release, ok := d.Lock.Acquire(ctx, mold.ID)
	if !ok {
		// Could not serialize: record history anyway, skip the comparison.
		if _, err := d.Samples.Insert(ctx, mold.ID, lat, lng, recordedAt); err != nil {
			return fmt.Errorf("insert gps sample: %w", err)
		}
		log.Printf("drift: mold=%s lock contended, sample recorded without evaluation", mold.Code)
		return nil
	}
	defer release()

	sample, err := d.Samples.Insert(ctx, mold.ID, lat, lng, recordedAt)
	if err != nil {
		return fmt.Errorf("insert gps sample: %w", err)
	}

	prev, err := d.Samples.PreviousBefore(ctx, mold.ID, sample.RecordedAt, sample.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// First known position for this mold; never alert on a first sample.
		return nil
	}
	if err != nil {
		log.Printf("drift: mold=%s previous-sample lookup failed: %v", mold.Code, err)
		return nil
	}

	distance := geo.DistanceKm(prev.Latitude, prev.Longitude, sample.Latitude, sample.Longitude)
	if distance <= d.ThresholdKm {
		return nil
	}

	d.raiseAlert(ctx, mold, prev, sample, distance)
	return nil
}

// raiseAlert creates the alert row and fans out notifications plus the
// broker event.  Every step logs and continues on failure.
func (d *DriftDetector) raiseAlert(ctx context.Context, mold model.Mold, prev, sample model.GPSSample, distance float64) {
	meta, _ := json.Marshal(map[string]interface{}{
		"mold_id":     mold.ID,
		"mold_code":   mold.Code,
		"prev_lat":    prev.Latitude,
		"prev_lng":    prev.Longitude,
		"new_lat":     sample.Latitude,
		"new_lng":     sample.Longitude,
		"distance_km": distance,
	})
	alert := model.Alert{
		MoldID:    mold.ID,
		AlertType: model.AlertTypeLocationDrift,
		Severity:  "high",
		Message:   fmt.Sprintf("mold %s moved %.2f km between consecutive GPS samples", mold.Code, distance),
		Metadata:  string(meta),
	}
	alertID, err := d.Alerts.Create(ctx, alert)
	if err != nil {
		log.Printf("drift: mold=%s alert create failed: %v", mold.Code, err)
		return
	}
	log.Printf("drift: mold=%s alert=%d raised, distance=%.3f km", mold.Code, alertID, distance)

	notified := 0
	audience, err := d.Users.ListActiveByRoles(ctx, model.RoleAdmin, model.RoleDeveloper)
	if err != nil {
		log.Printf("drift: mold=%s audience lookup failed: %v", mold.Code, err)
	}
	for _, u := range audience {
		if err := d.Notifications.Create(ctx, u.ID, alertID, "Location drift detected", alert.Message); err != nil {
			log.Printf("drift: notification for user=%d failed: %v", u.ID, err)
			continue
		}
		notified++
	}

	if d.Publish != nil {
		event := queue.AlertRaisedEvent{
			AlertID:     alertID,
			MoldID:      mold.ID,
			MoldCode:    mold.Code,
			AlertType:   alert.AlertType,
			Severity:    alert.Severity,
			Message:     alert.Message,
			PrevLat:     prev.Latitude,
			PrevLng:     prev.Longitude,
			NewLat:      sample.Latitude,
			NewLng:      sample.Longitude,
			DistanceKm:  distance,
			RecordedAt:  sample.RecordedAt.UTC().Format(time.RFC3339),
			NotifyCount: notified,
		}
		if err := d.Publish(ctx, event); err != nil {
			log.Printf("drift: mold=%s broker publish failed: %v", mold.Code, err)
		}
	}
}
