package geofence

import (
	"context"
	"sync"
	"testing"
)

const (
	centerLat = 35.0
	centerLng = 139.0
	// ~1.1 km north of center, well outside a 100 m radius.
	farLat = 35.01
)

// fakeProvider delivers readings on demand through push.
type fakeProvider struct {
	mu      sync.Mutex
	current Position
	fn      func(Position)
	stopped bool
}

func (p *fakeProvider) Current(ctx context.Context) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProvider) Watch(fn func(Position)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
	return func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
	}, nil
}

func (p *fakeProvider) push(pos Position) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(pos)
	}
}

type counters struct {
	out  int
	back int
}

func newEnabledMonitor(t *testing.T, p *fakeProvider) (*Monitor, *counters) {
	t.Helper()
	c := &counters{}
	m := NewMonitor(p, Config{
		CenterLat:     centerLat,
		CenterLng:     centerLng,
		RadiusM:       100,
		OnOutOfRange:  func(float64) { c.out++ },
		OnBackInRange: func() { c.back++ },
	})
	if err := m.Enable(context.Background()); err != nil {
		t.Fatalf("enable: %v", err)
	}
	return m, c
}

func TestEdgeTriggeredTransitions(t *testing.T) {
	p := &fakeProvider{current: Position{Latitude: centerLat, Longitude: centerLng}}
	m, c := newEnabledMonitor(t, p)

	// Repeated out-of-range readings fire the callback once.
	p.push(Position{Latitude: farLat, Longitude: centerLng})
	p.push(Position{Latitude: farLat, Longitude: centerLng})
	if c.out != 1 {
		t.Fatalf("out-of-range fired %d times, want 1", c.out)
	}
	if !m.OutOfRange() {
		t.Fatal("monitor not flagged out of range")
	}

	// Same on the way back in.
	p.push(Position{Latitude: centerLat, Longitude: centerLng})
	p.push(Position{Latitude: centerLat, Longitude: centerLng})
	if c.back != 1 {
		t.Fatalf("back-in-range fired %d times, want 1", c.back)
	}
	if m.OutOfRange() {
		t.Fatal("monitor still flagged out of range")
	}

	// A second excursion fires again.
	p.push(Position{Latitude: farLat, Longitude: centerLng})
	if c.out != 2 {
		t.Fatalf("second excursion fired %d times total, want 2", c.out)
	}
}

func TestEnableEvaluatesImmediateReading(t *testing.T) {
	p := &fakeProvider{current: Position{Latitude: farLat, Longitude: centerLng}}
	m, c := newEnabledMonitor(t, p)

	if c.out != 1 {
		t.Fatalf("initial out-of-range reading fired %d times, want 1", c.out)
	}
	if !m.OutOfRange() {
		t.Fatal("monitor not flagged out of range after enable")
	}
}

func TestDisableReleasesWatch(t *testing.T) {
	p := &fakeProvider{current: Position{Latitude: centerLat, Longitude: centerLng}}
	m, c := newEnabledMonitor(t, p)

	m.Disable()
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if !stopped {
		t.Fatal("disable did not release the watch handle")
	}

	// Readings after disable are ignored.
	p.push(Position{Latitude: farLat, Longitude: centerLng})
	if c.out != 0 {
		t.Fatalf("disabled monitor fired %d times", c.out)
	}
	if m.OutOfRange() {
		t.Fatal("disabled monitor reports out of range")
	}
}

func TestReenableStartsFresh(t *testing.T) {
	p := &fakeProvider{current: Position{Latitude: centerLat, Longitude: centerLng}}
	m, c := newEnabledMonitor(t, p)

	p.push(Position{Latitude: farLat, Longitude: centerLng})
	m.Disable()

	if err := m.Enable(context.Background()); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if m.OutOfRange() {
		t.Fatal("re-enabled monitor kept stale out-of-range state")
	}
	p.push(Position{Latitude: farLat, Longitude: centerLng})
	if c.out != 2 {
		t.Fatalf("out-of-range count = %d, want 2 (one per excursion)", c.out)
	}
}
