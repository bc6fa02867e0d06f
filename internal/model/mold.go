package model

import "time"

// Mold is the tracked manufacturing asset.  The business CRUD around molds
// (checklists, repairs, approvals) lives in the application layer and is out
// of scope here; this service only needs the registry row to resolve QR
// codes and to hand geofence parameters to the field agent.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – canonical asset code embedded in the QR label.
//  Name           – display name.
//  AllowedLat     – geofence center latitude (nullable: no fence configured).
//  AllowedLng     – geofence center longitude.
//  AllowedRadiusM – geofence radius in metres.
//  CreatedAt      – creation timestamp.
type Mold struct {
	ID             uint64    // molds.id
	Code           string    // molds.code
	Name           string    // molds.name
	AllowedLat     *float64  // molds.allowed_lat (nullable)
	AllowedLng     *float64  // molds.allowed_lng (nullable)
	AllowedRadiusM *float64  // molds.allowed_radius_m (nullable)
	CreatedAt      time.Time // molds.created_at
}
