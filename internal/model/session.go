package model

import "time"

// WorkSession is a time-boxed work context created when a technician scans a
// mold's QR code.  Rows in `work_sessions` are never deleted; they form the
// audit trail of who worked on which asset.  A session stops being usable
// either when IsActive is flipped to false (explicit end or a superseding
// scan) or when ExpiresAt passes.  Expiry is a derived fact: validation never
// writes the flag back.
//
// Fields:
//  ID         – primary key identifier.
//  Token      – opaque random token returned to the client.
//  UserID     – technician who scanned.
//  MoldID     – asset the session is bound to.
//  QRCode     – raw QR payload as scanned, after normalization.
//  DeviceInfo – free-form description of the scanning device.
//  IssuedAt   – when the session was created.
//  ExpiresAt  – IssuedAt plus the configured TTL (8 hours).
//  IsActive   – explicit revocation flag; true until ended or superseded.
type WorkSession struct {
	ID         uint64    // work_sessions.id
	Token      string    // work_sessions.token
	UserID     uint64    // work_sessions.user_id
	MoldID     uint64    // work_sessions.mold_id
	QRCode     string    // work_sessions.qr_code
	DeviceInfo string    // work_sessions.device_info
	IssuedAt   time.Time // work_sessions.issued_at
	ExpiresAt  time.Time // work_sessions.expires_at
	IsActive   bool      // work_sessions.is_active
}

// ValidAt reports whether the session is usable at the given instant:
// still active and not yet past its expiry.
func (s *WorkSession) ValidAt(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
