// Package geofence watches the device position against an allowed radius
// around the asset currently being worked on.  It is a purely local advisory
// signal for the UI; it records no history and talks to no server.
package geofence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/geo"
)

// Position is one geolocation reading.  Accuracy is advisory only and takes
// no part in the range decision.
type Position struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	RecordedAt time.Time
}

// PositionProvider abstracts the platform location source.  Watch delivers
// readings to fn until the returned stop function is called; readings are
// delivered one at a time, in order.
type PositionProvider interface {
	Current(ctx context.Context) (Position, error)
	Watch(fn func(Position)) (stop func(), err error)
}

// Config sets the allowed area and the transition callbacks.  Callbacks are
// edge-triggered: fired once per crossing, not on every reading that stays
// on the same side.
type Config struct {
	CenterLat     float64
	CenterLng     float64
	RadiusM       float64
	OnOutOfRange  func(distanceM float64)
	OnBackInRange func()
}

// Monitor tracks in/out-of-range state for one asset.
type Monitor struct {
	provider PositionProvider
	cfg      Config

	mu         sync.Mutex
	enabled    bool
	outOfRange bool
	stop       func()
}

// NewMonitor builds a disabled monitor; call Enable to start watching.
func NewMonitor(p PositionProvider, cfg Config) *Monitor {
	return &Monitor{provider: p, cfg: cfg}
}

// Enable takes one immediate reading, evaluates it, and starts the
// continuous watch.  Enabling an already enabled monitor is a no-op.
func (m *Monitor) Enable(ctx context.Context) error {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return nil
	}
	m.enabled = true
	m.outOfRange = false
	m.mu.Unlock()

	pos, err := m.provider.Current(ctx)
	if err != nil {
		m.mu.Lock()
		m.enabled = false
		m.mu.Unlock()
		return fmt.Errorf("initial position: %w", err)
	}
	m.handle(pos)

	stop, err := m.provider.Watch(m.handle)
	if err != nil {
		m.mu.Lock()
		m.enabled = false
		m.mu.Unlock()
		return fmt.Errorf("start watch: %w", err)
	}
	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
	return nil
}

// Disable releases the platform watch handle.  A later Enable starts a
// fresh watch from a clean in-range state.
func (m *Monitor) Disable() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.enabled = false
	m.outOfRange = false
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// OutOfRange reports the current advisory state.
func (m *Monitor) OutOfRange() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outOfRange
}

// handle evaluates one reading under the lock so updates are processed
// strictly in delivery order.
func (m *Monitor) handle(p Position) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	dist := geo.DistanceMeters(m.cfg.CenterLat, m.cfg.CenterLng, p.Latitude, p.Longitude)
	out := dist > m.cfg.RadiusM
	changed := out != m.outOfRange
	m.outOfRange = out
	m.mu.Unlock()

	if !changed {
		return
	}
	if out {
		if m.cfg.OnOutOfRange != nil {
			m.cfg.OnOutOfRange(dist)
		}
	} else if m.cfg.OnBackInRange != nil {
		m.cfg.OnBackInRange()
	}
}
