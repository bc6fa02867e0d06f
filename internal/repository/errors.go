// Package repository defines data access over the server's MySQL store and
// the sentinel error values reused across repositories.  Sentinels let the
// service and handler layers distinguish failure scenarios: a session token
// that matches no row is a different outcome from one that matched but is
// expired, and callers must be able to tell the two apart.
package repository

import "errors"

// ErrSessionNotFound is returned when no work session row carries the
// requested token.  Handlers translate this into HTTP 404.
var ErrSessionNotFound = errors.New("session not found")

// ErrMoldNotFound is returned when a QR code or id resolves to no mold.
// Handlers translate this into HTTP 404.
var ErrMoldNotFound = errors.New("mold not found")

// ErrAlertNotFound is returned when resolving an alert that does not exist.
var ErrAlertNotFound = errors.New("alert not found")
