// Package queue defines message payloads exchanged over the message broker.
package queue

// AlertRaisedEvent is published when the drift detector raises an alert.
// It carries enough information for downstream consumers to log, page, or
// feed dashboards without querying the primary database.
type AlertRaisedEvent struct {
	AlertID     uint64  `json:"alert_id"`
	MoldID      uint64  `json:"mold_id"`
	MoldCode    string  `json:"mold_code"`
	AlertType   string  `json:"alert_type"`
	Severity    string  `json:"severity"`
	Message     string  `json:"message"`
	PrevLat     float64 `json:"prev_lat"`
	PrevLng     float64 `json:"prev_lng"`
	NewLat      float64 `json:"new_lat"`
	NewLng      float64 `json:"new_lng"`
	DistanceKm  float64 `json:"distance_km"`
	RecordedAt  string  `json:"recorded_at"`
	NotifyCount int     `json:"notify_count"`
}
