// Package dispatch performs a single logical API operation for the agent,
// either directly over HTTP or, when connectivity is unavailable, by
// deferring it into the local operation queue.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moldtrack/mold-asset-tracker/internal/agent/store"
)

// APIError is a well-formed HTTP error response (4xx/5xx).  The server saw
// the request and rejected it, so the operation is never queued for retry.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, string(e.Body))
}

// Outcome is the result of a performed or deferred operation.
type Outcome struct {
	// Deferred is true when the operation was written to the local queue
	// instead of reaching the server.  Status and Body are zero in that
	// case; QueuedID identifies the stored item.
	Deferred bool
	QueuedID int64
	Status   int
	Body     []byte
}

// Enqueuer is the slice of the local store the dispatcher defers into.
type Enqueuer interface {
	Enqueue(ctx context.Context, opType, endpoint, method string, payload json.RawMessage) (store.QueueItem, error)
}

// Connectivity reports the agent's last known online state.
type Connectivity interface {
	Online() bool
}

// Dispatcher routes operations to the API or the local queue.  Token, when
// set, supplies the bearer token attached to every request.
type Dispatcher struct {
	BaseURL  string
	Client   *http.Client
	Queue    Enqueuer
	Net      Connectivity
	DeviceID string
	Token    func() string
}

// New builds a dispatcher with a bounded HTTP client and a fresh device id.
func New(baseURL string, queue Enqueuer, net Connectivity) *Dispatcher {
	return &Dispatcher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   &http.Client{Timeout: 15 * time.Second},
		Queue:    queue,
		Net:      net,
		DeviceID: uuid.NewString(),
	}
}

// Perform executes one operation with the offline contract:
//
//   - offline: enqueue immediately, return a deferred outcome.
//   - online, transport failure (no response): enqueue, return deferred.
//   - online, HTTP 4xx/5xx: propagate *APIError, never enqueue.
//   - online, 2xx/3xx: return the response.
//
// A failed enqueue is a hard error: the caller must not be told the work
// was saved when the local write did not succeed.
func (d *Dispatcher) Perform(ctx context.Context, opType, endpoint, method string, payload json.RawMessage) (Outcome, error) {
	if !d.Net.Online() {
		return d.defer_(ctx, opType, endpoint, method, payload)
	}

	out, err := d.Direct(ctx, endpoint, method, payload)
	if err == nil {
		return out, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Outcome{}, err
	}
	return d.defer_(ctx, opType, endpoint, method, payload)
}

func (d *Dispatcher) defer_(ctx context.Context, opType, endpoint, method string, payload json.RawMessage) (Outcome, error) {
	item, err := d.Queue.Enqueue(ctx, opType, endpoint, method, payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("defer operation: %w", err)
	}
	return Outcome{Deferred: true, QueuedID: item.ID}, nil
}

// Direct performs the HTTP call without any queue fallback.  The sync
// engine replays queued items through this path so its failures feed the
// retry counter instead of re-enqueueing.
func (d *Dispatcher) Direct(ctx context.Context, endpoint, method string, payload json.RawMessage) (Outcome, error) {
	var body io.Reader
	if len(payload) > 0 && method != http.MethodGet {
		body = bytes.NewReader(payload)
	}
	url := d.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", d.DeviceID)
	req.Header.Set("X-Correlation-ID", uuid.NewString())
	if d.Token != nil {
		if tok := d.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return Outcome{}, err // transport failure, retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{}, err
	}
	if resp.StatusCode >= 400 {
		return Outcome{}, &APIError{Status: resp.StatusCode, Body: respBody}
	}
	return Outcome{Status: resp.StatusCode, Body: respBody}, nil
}
