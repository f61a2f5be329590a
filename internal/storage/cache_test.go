package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthony-okoye/vestpod-mobile-sub000/internal/domain"
)

func newTestStore(t *testing.T) (*CacheStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func TestCacheStore_QueueFIFOOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Same wall-clock instant for every enqueue: order must come from
	// insertion position, not the timestamp embedded in the id.
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	var ids []string
	for i := 0; i < 5; i++ {
		c, err := store.Enqueue(ctx, domain.ChangeUpdateProfile, json.RawMessage(`{}`))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, c.ID)
	}

	queue, err := store.GetQueue(ctx)
	if err != nil {
		t.Fatalf("GetQueue failed: %v", err)
	}
	if len(queue) != 5 {
		t.Fatalf("queue length = %d, want 5", len(queue))
	}
	for i, c := range queue {
		if c.ID != ids[i] {
			t.Errorf("position %d = %s, want %s", i, c.ID, ids[i])
		}
	}
}

func TestCacheStore_QueueSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	store, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()

	c1, err := store.Enqueue(ctx, domain.ChangeCreatePortfolio, json.RawMessage(`{"name":"Growth"}`))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	c2, err := store.Enqueue(ctx, domain.ChangeDeleteAsset, json.RawMessage(`{"id":"a1","portfolio_id":"p1"}`))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := store.IncrementRetry(ctx, c2.ID); err != nil {
		t.Fatalf("IncrementRetry failed: %v", err)
	}
	store.Close()

	reopened, err := NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	queue, err := reopened.GetQueue(ctx)
	if err != nil {
		t.Fatalf("GetQueue after reopen failed: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length after reopen = %d, want 2", len(queue))
	}
	if queue[0].ID != c1.ID || queue[1].ID != c2.ID {
		t.Errorf("order lost across reopen: got [%s, %s]", queue[0].ID, queue[1].ID)
	}
	if queue[1].RetryCount != 1 {
		t.Errorf("retry count lost across reopen: got %d, want 1", queue[1].RetryCount)
	}
	if string(queue[0].Payload) != `{"name":"Growth"}` {
		t.Errorf("payload corrupted: %s", queue[0].Payload)
	}
}

func TestCacheStore_EnqueueRejectsUnknownType(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Enqueue(context.Background(), "CREATE_ORDER", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown change type")
	}
}

func TestCacheStore_RemoveFromQueueIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	c, err := store.Enqueue(ctx, domain.ChangeUpdateAsset, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := store.RemoveFromQueue(ctx, c.ID); err != nil {
		t.Fatalf("RemoveFromQueue failed: %v", err)
	}
	// Second removal of the same id must be a no-op.
	if err := store.RemoveFromQueue(ctx, c.ID); err != nil {
		t.Fatalf("RemoveFromQueue (missing id) failed: %v", err)
	}

	count, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0", count)
	}
}

func TestCacheStore_IncrementRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	c, err := store.Enqueue(ctx, domain.ChangeUpdateProfile, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementRetry(ctx, c.ID)
		if err != nil {
			t.Fatalf("IncrementRetry failed: %v", err)
		}
		if got != want {
			t.Errorf("retry count = %d, want %d", got, want)
		}
	}

	// Unknown id reports zero without error.
	got, err := store.IncrementRetry(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("IncrementRetry on missing id failed: %v", err)
	}
	if got != 0 {
		t.Errorf("retry count for missing id = %d, want 0", got)
	}
}

func TestCacheStore_ReplaceCollection(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := map[string][]byte{
		"p1": []byte(`{"id":"p1","name":"Old"}`),
		"p2": []byte(`{"id":"p2","name":"Gone"}`),
	}
	if err := store.ReplaceCollection(ctx, CollectionPortfolios, first); err != nil {
		t.Fatalf("ReplaceCollection failed: %v", err)
	}

	// Last write wins wholesale: p2 disappears, p1 is overwritten.
	second := map[string][]byte{
		"p1": []byte(`{"id":"p1","name":"New"}`),
		"p3": []byte(`{"id":"p3","name":"Added"}`),
	}
	if err := store.ReplaceCollection(ctx, CollectionPortfolios, second); err != nil {
		t.Fatalf("ReplaceCollection failed: %v", err)
	}

	got, err := store.GetAll(ctx, CollectionPortfolios)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("collection size = %d, want 2", len(got))
	}
	if _, ok := got["p2"]; ok {
		t.Error("p2 should have been replaced away")
	}
	if string(got["p1"]) != `{"id":"p1","name":"New"}` {
		t.Errorf("p1 = %s, want the new payload", got["p1"])
	}
}

func TestCacheStore_ReplaceCollectionIsolatedPerPortfolio(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceCollection(ctx, CollectionAssets("p1"),
		map[string][]byte{"a1": []byte(`{}`)}); err != nil {
		t.Fatalf("ReplaceCollection failed: %v", err)
	}
	if err := store.ReplaceCollection(ctx, CollectionAssets("p2"),
		map[string][]byte{"b1": []byte(`{}`)}); err != nil {
		t.Fatalf("ReplaceCollection failed: %v", err)
	}

	// Emptying p1's assets must not touch p2's.
	if err := store.ReplaceCollection(ctx, CollectionAssets("p1"), nil); err != nil {
		t.Fatalf("ReplaceCollection failed: %v", err)
	}

	p2, err := store.GetAll(ctx, CollectionAssets("p2"))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(p2) != 1 {
		t.Errorf("p2 assets = %d, want 1", len(p2))
	}
}

func TestCacheStore_GetAllAbsentCollection(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetAll(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("absent collection = %d entries, want empty map", len(got))
	}
}

func TestCacheStore_PutAndDeleteEntity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, CollectionPortfolios, "p1", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("PutEntity failed: %v", err)
	}
	if err := store.PutEntity(ctx, CollectionPortfolios, "p1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("PutEntity upsert failed: %v", err)
	}

	got, err := store.GetAll(ctx, CollectionPortfolios)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if string(got["p1"]) != `{"v":2}` {
		t.Errorf("p1 = %s, want upserted payload", got["p1"])
	}

	if err := store.DeleteEntity(ctx, CollectionPortfolios, "p1"); err != nil {
		t.Fatalf("DeleteEntity failed: %v", err)
	}
	if err := store.DeleteEntity(ctx, CollectionPortfolios, "p1"); err != nil {
		t.Fatalf("DeleteEntity (missing id) failed: %v", err)
	}
}

func TestCacheStore_LastUpdated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.LastUpdated(ctx); err != nil || ok {
		t.Fatalf("LastUpdated on fresh store = ok=%v err=%v, want unset", ok, err)
	}

	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	if err := store.PutEntity(ctx, CollectionProfile, "u1", []byte(`{}`)); err != nil {
		t.Fatalf("PutEntity failed: %v", err)
	}

	ts, ok, err := store.LastUpdated(ctx)
	if err != nil {
		t.Fatalf("LastUpdated failed: %v", err)
	}
	if !ok {
		t.Fatal("LastUpdated should be set after a write")
	}
	if !ts.Equal(fixed) {
		t.Errorf("LastUpdated = %s, want %s", ts, fixed)
	}
}

func TestCacheStore_ClearAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.PutEntity(ctx, CollectionPortfolios, "p1", []byte(`{}`)); err != nil {
		t.Fatalf("PutEntity failed: %v", err)
	}
	if _, err := store.Enqueue(ctx, domain.ChangeUpdateProfile, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	entries, err := store.GetAll(ctx, CollectionPortfolios)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("collections not cleared: %d entries", len(entries))
	}

	count, err := store.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("queue not cleared: %d entries", count)
	}

	if _, ok, err := store.LastUpdated(ctx); err != nil || ok {
		t.Errorf("metadata not cleared: ok=%v err=%v", ok, err)
	}
}

func TestCacheStore_PutQueuePreservesRetryCounts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entries := []domain.QueuedChange{
		{ID: "c-1", Type: domain.ChangeCreatePortfolio, Payload: json.RawMessage(`{}`), CreatedAtUnixM: 1, RetryCount: 2},
		{ID: "c-2", Type: domain.ChangeUpdateAsset, Payload: json.RawMessage(`{}`), CreatedAtUnixM: 2, RetryCount: 0},
	}
	if err := store.PutQueue(ctx, entries); err != nil {
		t.Fatalf("PutQueue failed: %v", err)
	}

	queue, err := store.GetQueue(ctx)
	if err != nil {
		t.Fatalf("GetQueue failed: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(queue))
	}
	if queue[0].ID != "c-1" || queue[0].RetryCount != 2 {
		t.Errorf("entry 0 = %+v, want c-1 with retry 2", queue[0])
	}
	if queue[1].ID != "c-2" || queue[1].RetryCount != 0 {
		t.Errorf("entry 1 = %+v, want c-2 with retry 0", queue[1])
	}
}
