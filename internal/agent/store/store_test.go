package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueListOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, ep := range []string{"/v1/a", "/v1/b", "/v1/c"} {
		if _, err := s.Enqueue(ctx, "repair_request", ep, "POST", json.RawMessage(`{"x":1}`)); err != nil {
			t.Fatalf("enqueue %s: %v", ep, err)
		}
	}

	items, err := s.ListQueue(ctx)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	for i, want := range []string{"/v1/a", "/v1/b", "/v1/c"} {
		if items[i].Endpoint != want {
			t.Errorf("item %d endpoint = %q, want %q", i, items[i].Endpoint, want)
		}
		if items[i].RetryCount != 0 {
			t.Errorf("item %d retry count = %d, want 0", i, items[i].RetryCount)
		}
	}
}

func TestRemoveFromQueueIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item, err := s.Enqueue(ctx, "checklist", "/v1/c", "PUT", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.RemoveFromQueue(ctx, item.ID); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := s.RemoveFromQueue(ctx, item.ID); err != nil {
		t.Fatalf("second remove should be a no-op success, got: %v", err)
	}
	if err := s.RemoveFromQueue(ctx, 99999); err != nil {
		t.Fatalf("removing absent id should succeed, got: %v", err)
	}

	items, err := s.ListQueue(ctx)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("queue not empty after removal: %d items", len(items))
	}
}

func TestIncrementRetry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item, err := s.Enqueue(ctx, "repair_request", "/v1/r", "POST", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for want := 1; want <= 3; want++ {
		n, err := s.IncrementRetry(ctx, item.ID)
		if err != nil {
			t.Fatalf("increment retry: %v", err)
		}
		if n != want {
			t.Fatalf("retry count = %d, want %d", n, want)
		}
	}

	items, err := s.ListQueue(ctx)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if items[0].RetryCount != 3 {
		t.Fatalf("persisted retry count = %d, want 3", items[0].RetryCount)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := s.Enqueue(ctx, "repair_request", "/v1/r", "POST", json.RawMessage(`{"note":"hi"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.IncrementRetry(ctx, 1); err != nil {
		t.Fatalf("increment retry: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	items, err := s2.ListQueue(ctx)
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items after reopen, want 1", len(items))
	}
	if items[0].RetryCount != 1 {
		t.Fatalf("retry count lost across reopen: got %d, want 1", items[0].RetryCount)
	}
	if string(items[0].Payload) != `{"note":"hi"}` {
		t.Fatalf("payload lost across reopen: %s", items[0].Payload)
	}
}

func TestDraftUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveDraft(ctx, "mold42:checklist", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if err := s.SaveDraft(ctx, "mold42:checklist", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	d, err := s.LoadDraft(ctx, "mold42:checklist")
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if string(d.Payload) != `{"v":2}` {
		t.Fatalf("draft payload = %s, want second write", d.Payload)
	}

	if err := s.DeleteDraft(ctx, "mold42:checklist"); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := s.LoadDraft(ctx, "mold42:checklist"); err != ErrDraftNotFound {
		t.Fatalf("load after delete: err = %v, want ErrDraftNotFound", err)
	}
	if err := s.DeleteDraft(ctx, "mold42:checklist"); err != nil {
		t.Fatalf("delete absent key should succeed, got: %v", err)
	}
}

func TestLoadDraftAbsentKey(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadDraft(context.Background(), "nope"); err != ErrDraftNotFound {
		t.Fatalf("err = %v, want ErrDraftNotFound", err)
	}
}

func TestRecentActionsRingBound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		label := string(rune('A' + i%26))
		if err := s.RecordAction(ctx, uint64(i), label, "scan", "scanned"); err != nil {
			t.Fatalf("record action %d: %v", i, err)
		}
	}

	actions, err := s.ListRecentActions(ctx, 100)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 20 {
		t.Fatalf("got %d actions, want 20", len(actions))
	}
	// Most recent first: the 25th insert had asset id 24, the oldest
	// surviving one had 5.
	if actions[0].AssetID != 24 {
		t.Errorf("newest asset id = %d, want 24", actions[0].AssetID)
	}
	if actions[len(actions)-1].AssetID != 5 {
		t.Errorf("oldest surviving asset id = %d, want 5", actions[len(actions)-1].AssetID)
	}
}

func TestListRecentActionsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordAction(ctx, uint64(i), "M", "scan", ""); err != nil {
			t.Fatalf("record action: %v", err)
		}
	}
	actions, err := s.ListRecentActions(ctx, 3)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	if actions[0].AssetID != 4 {
		t.Errorf("newest asset id = %d, want 4", actions[0].AssetID)
	}
}
