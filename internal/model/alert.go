package model

import "time"

// AlertTypeLocationDrift is the only alert type raised by this service.
const AlertTypeLocationDrift = "location_drift"

// Alert records a detected anomaly.  Today the only producer is the drift
// detector, which raises one alert when consecutive GPS samples for a mold
// are further apart than the configured threshold.  Resolution is driven by
// an external workflow that flips IsResolved.
//
// Fields:
//  ID         – primary key identifier.
//  MoldID     – asset the alert concerns.
//  AlertType  – alert discriminator ("location_drift").
//  Severity   – "high" for drift alerts.
//  Message    – human-readable summary including the computed distance.
//  Metadata   – JSON blob with previous/new coordinates and distance.
//  IsResolved – false until an operator resolves the alert.
//  CreatedAt  – creation timestamp.
type Alert struct {
	ID         uint64    // alerts.id
	MoldID     uint64    // alerts.mold_id
	AlertType  string    // alerts.alert_type
	Severity   string    // alerts.severity
	Message    string    // alerts.message
	Metadata   string    // alerts.metadata (JSON)
	IsResolved bool      // alerts.is_resolved
	CreatedAt  time.Time // alerts.created_at
}

// Notification is the per-recipient fan-out of an alert.  Creation is
// best-effort relative to the alert write: a failed notification insert is
// logged and never rolls back the alert or the triggering GPS sample.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – recipient.
//  AlertID   – alert this notification references.
//  Title     – short subject line.
//  Body      – notification text.
//  IsRead    – false until the recipient opens it.
//  CreatedAt – creation timestamp.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id
	AlertID   uint64    // notifications.alert_id
	Title     string    // notifications.title
	Body      string    // notifications.body
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
