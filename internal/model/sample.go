package model

import "time"

// GPSSample is an immutable historical position record for a mold.  Rows in
// `gps_samples` are append-only: the drift detector only ever reads them back
// ordered by recorded_at to find the newest sample strictly older than a
// fresh insert.
//
// Fields:
//  ID         – primary key identifier.
//  MoldID     – asset the sample belongs to.
//  Latitude   – decimal degrees, validated to [-90,90] before insert.
//  Longitude  – decimal degrees, validated to [-180,180] before insert.
//  RecordedAt – when the device captured the reading.
type GPSSample struct {
	ID         uint64    // gps_samples.id
	MoldID     uint64    // gps_samples.mold_id
	Latitude   float64   // gps_samples.latitude
	Longitude  float64   // gps_samples.longitude
	RecordedAt time.Time // gps_samples.recorded_at
}
