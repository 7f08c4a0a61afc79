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

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

type recordedCommands struct {
	mu   sync.Mutex
	cmds [][]any
}

func (r *recordedCommands) add(cmd []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

func (r *recordedCommands) last() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cmds) == 0 {
		return nil
	}
	return r.cmds[len(r.cmds)-1]
}

func newTestRepository(t *testing.T, reply string, status int) (*UpstashRedisBatchRepository, *recordedCommands) {
	t.Helper()

	rec := &recordedCommands{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q, want Bearer token", got)
		}
		var cmd []any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		rec.add(cmd)
		w.WriteHeader(status)
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(server.Close)

	repo, err := NewUpstashRedisBatchRepository(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithBatchIDGenerator(func() string { return "fresh-id" }),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisBatchRepository() error = %v", err)
	}
	return repo, rec
}

func TestNewUpstashRedisBatchRepositoryValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisBatchRepository(UpstashRedisConfig{Token: "t"}); err == nil {
		t.Fatal("NewUpstashRedisBatchRepository() error = nil, want missing url error")
	}
	if _, err := NewUpstashRedisBatchRepository(UpstashRedisConfig{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("NewUpstashRedisBatchRepository() error = nil, want missing token error")
	}
}

func TestBatchKeys(t *testing.T) {
	t.Parallel()

	repo := &UpstashRedisBatchRepository{keyPrefix: defaultStoreKeyPrefix}
	keys, err := repo.batchKeys(42)
	if err != nil {
		t.Fatalf("batchKeys() error = %v", err)
	}
	if keys.list != "batch:42" || keys.id != "batch:42:id" || keys.updated != "batch:42:updated" {
		t.Fatalf("batchKeys() = %+v", keys)
	}
	if _, err := repo.batchKeys(0); !errors.Is(err, ErrInvalidCustomer) {
		t.Fatalf("batchKeys(0) error = %v, want ErrInvalidCustomer", err)
	}
}

func TestListActiveCustomerIDs(t *testing.T) {
	t.Parallel()

	repo, rec := newTestRepository(t, `{"result":["7","abc"]}`, http.StatusOK)

	ids, err := repo.ListActiveCustomerIDs(context.Background())
	if err != nil {
		t.Fatalf("ListActiveCustomerIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "7" || ids[1] != "abc" {
		t.Fatalf("ListActiveCustomerIDs() = %v", ids)
	}
	cmd := rec.last()
	if cmd[0] != "SMEMBERS" || cmd[1] != "batch:active" {
		t.Fatalf("command = %v, want SMEMBERS batch:active", cmd)
	}
}

func TestGetBatchParsesSnapshot(t *testing.T) {
	t.Parallel()

	repo, rec := newTestRepository(t, `{"result":["b-1","1700000000.250000",["11","12"]]}`, http.StatusOK)

	batch, err := repo.GetBatch(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.BatchID != "b-1" || len(batch.MessageIDs) != 2 || batch.MessageIDs[1] != 12 {
		t.Fatalf("GetBatch() = %+v", batch)
	}
	want := time.Unix(1700000000, 250*int64(time.Millisecond)).UTC()
	if !batch.LastUpdated.Equal(want) {
		t.Fatalf("LastUpdated = %v, want %v", batch.LastUpdated, want)
	}

	cmd := rec.last()
	if cmd[0] != "EVAL" || cmd[2] != "4" || cmd[3] != "batch:7" || cmd[4] != "batch:7:id" || cmd[5] != "batch:7:updated" || cmd[6] != "batch:active" || cmd[7] != "7" {
		t.Fatalf("command = %v", cmd)
	}
}

func TestGetBatchMalformedTimestamp(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `{"result":["b-1","not-a-number",["11"]]}`, http.StatusOK)

	_, err := repo.GetBatch(context.Background(), 7)
	if !errors.Is(err, contractx.ErrMalformedBatch) {
		t.Fatalf("GetBatch() error = %v, want ErrMalformedBatch", err)
	}
}

func TestGetBatchWrongTypedSnapshot(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `{"result":[42,"1700000000.000000",["11"]]}`, http.StatusOK)

	_, err := repo.GetBatch(context.Background(), 7)
	if !errors.Is(err, contractx.ErrMalformedBatch) {
		t.Fatalf("GetBatch() error = %v, want ErrMalformedBatch", err)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `{"result":[null,null,[]]}`, http.StatusOK)

	_, err := repo.GetBatch(context.Background(), 7)
	if !errors.Is(err, contractx.ErrBatchNotFound) {
		t.Fatalf("GetBatch() error = %v, want ErrBatchNotFound", err)
	}
}

func TestAppendMessageSendsAtomicScript(t *testing.T) {
	t.Parallel()

	repo, rec := newTestRepository(t, `{"result":"existing-id"}`, http.StatusOK)

	at := time.Unix(1700000000, 0)
	id, err := repo.AppendMessage(context.Background(), 9, 101, at)
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if id != "existing-id" {
		t.Fatalf("AppendMessage() = %q, want existing-id", id)
	}

	cmd := rec.last()
	want := []any{"EVAL", appendScript, "4", "batch:9", "batch:9:id", "batch:9:updated", "batch:active", "101", "fresh-id", "1700000000.000000", "9"}
	if len(cmd) != len(want) {
		t.Fatalf("command length = %d, want %d: %v", len(cmd), len(want), cmd)
	}
	for i := range want {
		if cmd[i] != want[i] {
			t.Fatalf("command[%d] = %v, want %v", i, cmd[i], want[i])
		}
	}
}

func TestClearBatchSendsSnapshotIDs(t *testing.T) {
	t.Parallel()

	repo, rec := newTestRepository(t, `{"result":1}`, http.StatusOK)

	err := repo.ClearBatch(context.Background(), contractx.PendingBatch{CustomerID: 3, BatchID: "b-3", MessageIDs: []int64{5, 6}})
	if err != nil {
		t.Fatalf("ClearBatch() error = %v", err)
	}

	cmd := rec.last()
	tail := cmd[len(cmd)-5:]
	want := []any{"3", "b-3", "fresh-id", "5", "6"}
	for i := range want {
		if tail[i] != want[i] {
			t.Fatalf("command tail = %v, want %v", tail, want)
		}
	}
}

func TestClearBatchConflict(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `{"result":0}`, http.StatusOK)

	err := repo.ClearBatch(context.Background(), contractx.PendingBatch{CustomerID: 3, BatchID: "b-3", MessageIDs: []int64{5}})
	if !errors.Is(err, contractx.ErrBatchConflict) {
		t.Fatalf("ClearBatch() error = %v, want ErrBatchConflict", err)
	}
}

func TestExecWrapsHTTPFailure(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `upstream down`, http.StatusBadGateway)

	_, err := repo.ListActiveCustomerIDs(context.Background())
	if !errors.Is(err, contractx.ErrStoreUnavailable) {
		t.Fatalf("ListActiveCustomerIDs() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestExecWrapsRedisError(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t, `{"error":"ERR script failed"}`, http.StatusOK)

	_, err := repo.AppendMessage(context.Background(), 1, 1, time.Now())
	if !errors.Is(err, contractx.ErrStoreUnavailable) {
		t.Fatalf("AppendMessage() error = %v, want ErrStoreUnavailable", err)
	}
}
