// Package netstatus tracks whether the field agent currently has
// connectivity to the backend.  The rest of the client consults it before
// deciding to call the network directly or defer work to the local queue.
package netstatus

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Monitor holds the current online/offline state and notifies subscribers on
// every transition.  State changes are edge events: setting the same value
// twice produces no notification.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool
}

// NewMonitor returns a monitor seeded with the given initial state.
func NewMonitor(initial bool) *Monitor {
	return &Monitor{online: initial}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a new connectivity state.  On a change, every subscriber is
// sent the new value; a subscriber that has not drained its channel misses
// the event rather than blocking the caller.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
		}
	}
}

// Subscribe returns a channel that receives the new state on every
// online/offline transition.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan bool, 4)
	m.subs = append(m.subs, ch)
	return ch
}

// Probe polls the given URL on the interval and updates the monitor from the
// result.  Any HTTP response counts as online; only a transport failure
// marks the agent offline.  Returns when ctx is cancelled.
func (m *Monitor) Probe(ctx context.Context, url string, interval time.Duration) {
	client := &http.Client{Timeout: 5 * time.Second}
	check := func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			m.Set(false)
			return
		}
		resp.Body.Close()
		m.Set(true)
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
