// Package sync drains the agent's deferred-operation queue against the API
// when connectivity allows, owning the retry and eviction policy.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/moldtrack/mold-asset-tracker/internal/agent/dispatch"
	"github.com/moldtrack/mold-asset-tracker/internal/agent/store"
)

// MaxRetries is the ceiling after which a queued operation is evicted as
// permanently failed.
const MaxRetries = 3

// DrainInterval is the periodic safety-net trigger used by Run in addition
// to reconnect events.
const DrainInterval = 5 * time.Minute

// Queue is the slice of the local store the engine drains.
type Queue interface {
	ListQueue(ctx context.Context) ([]store.QueueItem, error)
	RemoveFromQueue(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) (int, error)
}

// Replayer replays a stored operation against the API directly, with no
// queue fallback.
type Replayer interface {
	Direct(ctx context.Context, endpoint, method string, payload json.RawMessage) (dispatch.Outcome, error)
}

// Connectivity exposes the online state plus transition events.
type Connectivity interface {
	Online() bool
	Subscribe() <-chan bool
}

// Summary reports one drain pass.  A non-zero Failed count means operations
// were evicted permanently; callers surface it but never treat it as fatal.
type Summary struct {
	Succeeded int
	Failed    int
	Errors    []string
}

// Engine drains the queue.  At most one drain runs at a time; overlapping
// calls return an empty summary without touching the queue.
type Engine struct {
	Queue    Queue
	Dispatch Replayer
	Net      Connectivity

	mu       sync.Mutex
	draining bool
}

// NewEngine wires a sync engine over the given queue, replayer and
// connectivity source.
func NewEngine(q Queue, d Replayer, n Connectivity) *Engine {
	return &Engine{Queue: q, Dispatch: d, Net: n}
}

// Drain replays the current queue snapshot in insertion order.  Successful
// items are removed; failures bump the retry counter, and an item reaching
// MaxRetries is evicted unconditionally and reported.  A single failure
// never stops the pass.  Offline, or with a drain already in flight, Drain
// is a no-op.
func (e *Engine) Drain(ctx context.Context) Summary {
	if !e.Net.Online() {
		return Summary{}
	}
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return Summary{}
	}
	e.draining = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	items, err := e.Queue.ListQueue(ctx)
	if err != nil {
		return Summary{Errors: []string{fmt.Sprintf("list queue: %v", err)}}
	}

	var s Summary
	for _, item := range items {
		_, err := e.Dispatch.Direct(ctx, item.Endpoint, item.Method, item.Payload)
		if err == nil {
			if rmErr := e.Queue.RemoveFromQueue(ctx, item.ID); rmErr != nil {
				s.Errors = append(s.Errors, fmt.Sprintf("remove item %d: %v", item.ID, rmErr))
				continue
			}
			s.Succeeded++
			continue
		}

		count, incErr := e.Queue.IncrementRetry(ctx, item.ID)
		if incErr != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("retry item %d: %v", item.ID, incErr))
			continue
		}
		if count >= MaxRetries {
			// Evicted work is lost; the log line is the only trace left.
			log.Printf("sync: evicting item %d (%s %s, type=%s) after %d failed attempts: %v",
				item.ID, item.Method, item.Endpoint, item.OperationType, count, err)
			if rmErr := e.Queue.RemoveFromQueue(ctx, item.ID); rmErr != nil {
				s.Errors = append(s.Errors, fmt.Sprintf("evict item %d: %v", item.ID, rmErr))
				continue
			}
			s.Failed++
			s.Errors = append(s.Errors, fmt.Sprintf("item %d (%s) evicted after %d attempts: %v",
				item.ID, item.OperationType, count, err))
		}
	}
	return s
}

// Run drains on every offline-to-online transition and on a fixed interval
// while running, as a safety net against missed transition events.  Blocks
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	transitions := e.Net.Subscribe()
	ticker := time.NewTicker(DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-transitions:
			if online {
				e.report(e.Drain(ctx))
			}
		case <-ticker.C:
			e.report(e.Drain(ctx))
		}
	}
}

func (e *Engine) report(s Summary) {
	if s.Succeeded == 0 && s.Failed == 0 && len(s.Errors) == 0 {
		return
	}
	log.Printf("sync: drain complete: succeeded=%d failed=%d errors=%d", s.Succeeded, s.Failed, len(s.Errors))
}
