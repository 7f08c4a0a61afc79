package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/redis/go-redis/v9"
)

// newScriptedRepository serves the Upstash REST protocol in front of an
// in-process Redis, so the Lua scripts run for real.
func newScriptedRepository(t *testing.T) (*UpstashRedisBatchRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = rdb.Close() })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := rdb.Do(r.Context(), cmd...).Result()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case errors.Is(err, redis.Nil):
			_ = json.NewEncoder(w).Encode(map[string]any{"result": nil})
		case err != nil:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"result": res})
		}
	}))
	t.Cleanup(server.Close)

	var (
		mu   sync.Mutex
		next int
	)
	repo, err := NewUpstashRedisBatchRepository(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithBatchIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			next++
			return fmt.Sprintf("batch-%d", next)
		}),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisBatchRepository() error = %v", err)
	}
	return repo, mr
}

func TestScriptsAppendSharesBatchID(t *testing.T) {
	t.Parallel()

	repo, _ := newScriptedRepository(t)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	first, err := repo.AppendMessage(ctx, 7, 11, at)
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	second, err := repo.AppendMessage(ctx, 7, 12, at.Add(2*time.Second))
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if first != second {
		t.Fatalf("batch ids differ: %q vs %q", first, second)
	}

	batch, err := repo.GetBatch(ctx, 7)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.BatchID != first || len(batch.MessageIDs) != 2 || batch.MessageIDs[0] != 11 || batch.MessageIDs[1] != 12 {
		t.Fatalf("GetBatch() = %+v", batch)
	}
	if !batch.LastUpdated.Equal(at.Add(2 * time.Second).UTC()) {
		t.Fatalf("LastUpdated = %v", batch.LastUpdated)
	}

	active, err := repo.ListActiveCustomerIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveCustomerIDs() error = %v", err)
	}
	if len(active) != 1 || active[0] != "7" {
		t.Fatalf("active = %v", active)
	}
}

func TestScriptsClearKeepsLateArrivals(t *testing.T) {
	t.Parallel()

	repo, mr := newScriptedRepository(t)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	for _, id := range []int64{11, 12} {
		if _, err := repo.AppendMessage(ctx, 7, id, at); err != nil {
			t.Fatalf("AppendMessage(%d) error = %v", id, err)
		}
	}
	snapshot, err := repo.GetBatch(ctx, 7)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}

	if _, err := repo.AppendMessage(ctx, 7, 13, at.Add(time.Second)); err != nil {
		t.Fatalf("AppendMessage(13) error = %v", err)
	}
	if err := repo.ClearBatch(ctx, snapshot); err != nil {
		t.Fatalf("ClearBatch() error = %v", err)
	}

	rest, err := repo.GetBatch(ctx, 7)
	if err != nil {
		t.Fatalf("GetBatch() after clear error = %v", err)
	}
	if len(rest.MessageIDs) != 1 || rest.MessageIDs[0] != 13 {
		t.Fatalf("remaining ids = %v, want [13]", rest.MessageIDs)
	}
	if rest.BatchID == snapshot.BatchID {
		t.Fatalf("remaining batch kept id %q", rest.BatchID)
	}

	if err := repo.ClearBatch(ctx, rest); err != nil {
		t.Fatalf("ClearBatch(rest) error = %v", err)
	}
	if _, err := repo.GetBatch(ctx, 7); !errors.Is(err, contractx.ErrBatchNotFound) {
		t.Fatalf("GetBatch() error = %v, want ErrBatchNotFound", err)
	}
	for _, key := range []string{"batch:7", "batch:7:id", "batch:7:updated"} {
		if mr.Exists(key) {
			t.Fatalf("key %s still present", key)
		}
	}
	active, err := repo.ListActiveCustomerIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveCustomerIDs() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %v, want empty", active)
	}
}

func TestScriptsClearRejectsStaleSnapshot(t *testing.T) {
	t.Parallel()

	repo, _ := newScriptedRepository(t)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	if _, err := repo.AppendMessage(ctx, 7, 11, at); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	snapshot, err := repo.GetBatch(ctx, 7)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}

	wrongID := snapshot
	wrongID.BatchID = "someone-else"
	if err := repo.ClearBatch(ctx, wrongID); !errors.Is(err, contractx.ErrBatchConflict) {
		t.Fatalf("ClearBatch(wrong id) error = %v, want ErrBatchConflict", err)
	}

	wrongIDs := snapshot
	wrongIDs.MessageIDs = []int64{99}
	if err := repo.ClearBatch(ctx, wrongIDs); !errors.Is(err, contractx.ErrBatchConflict) {
		t.Fatalf("ClearBatch(wrong ids) error = %v, want ErrBatchConflict", err)
	}

	if err := repo.ClearBatch(ctx, snapshot); err != nil {
		t.Fatalf("ClearBatch() error = %v", err)
	}
	if err := repo.ClearBatch(ctx, snapshot); !errors.Is(err, contractx.ErrBatchConflict) {
		t.Fatalf("second ClearBatch() error = %v, want ErrBatchConflict", err)
	}
}

func TestScriptsSnapshotDropsOrphanedIndexEntry(t *testing.T) {
	t.Parallel()

	repo, mr := newScriptedRepository(t)
	ctx := context.Background()

	if _, err := mr.SetAdd("batch:active", "9"); err != nil {
		t.Fatalf("SetAdd() error = %v", err)
	}

	if _, err := repo.GetBatch(ctx, 9); !errors.Is(err, contractx.ErrBatchNotFound) {
		t.Fatalf("GetBatch() error = %v, want ErrBatchNotFound", err)
	}
	active, err := repo.ListActiveCustomerIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveCustomerIDs() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %v, want orphan removed", active)
	}
}

func TestScriptsClaimIsExclusiveUntilReleased(t *testing.T) {
	t.Parallel()

	repo, mr := newScriptedRepository(t)
	ctx := context.Background()

	if _, err := repo.AppendMessage(ctx, 7, 11, time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	batch, err := repo.GetBatch(ctx, 7)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}

	ok, err := repo.ClaimBatch(ctx, batch, time.Minute)
	if err != nil || !ok {
		t.Fatalf("ClaimBatch() = %v, %v; want true", ok, err)
	}
	ok, err = repo.ClaimBatch(ctx, batch, time.Minute)
	if err != nil || ok {
		t.Fatalf("second ClaimBatch() = %v, %v; want false", ok, err)
	}

	if err := repo.ReleaseBatch(ctx, batch); err != nil {
		t.Fatalf("ReleaseBatch() error = %v", err)
	}
	ok, err = repo.ClaimBatch(ctx, batch, time.Minute)
	if err != nil || !ok {
		t.Fatalf("ClaimBatch() after release = %v, %v; want true", ok, err)
	}

	mr.FastForward(2 * time.Minute)
	ok, err = repo.ClaimBatch(ctx, batch, time.Minute)
	if err != nil || !ok {
		t.Fatalf("ClaimBatch() after expiry = %v, %v; want true", ok, err)
	}

	if _, err := repo.ClaimBatch(ctx, contractx.PendingBatch{CustomerID: 7}, time.Minute); !errors.Is(err, contractx.ErrMalformedBatch) {
		t.Fatalf("ClaimBatch(no id) error = %v, want ErrMalformedBatch", err)
	}
}
