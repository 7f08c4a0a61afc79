package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

var ErrInvalidCustomer = errors.New("customer id must be positive")

const (
	defaultStoreKeyPrefix = "batch:"
	activeIndexSuffix     = "active"
	maxResponseSizeBytes  = 2 << 20
)

// KEYS: list, id, updated, active
// ARGV: customer id
// A customer indexed without any batch keys is dropped from the index.
const snapshotScript = `
local id = redis.call('GET', KEYS[2])
local updated = redis.call('GET', KEYS[3])
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
if not id and not updated and #ids == 0 then
  redis.call('SREM', KEYS[4], ARGV[1])
end
return {id, updated, ids}
`

// KEYS: list, id, updated, active
// ARGV: message id, candidate batch id, timestamp, customer id
const appendScript = `
redis.call('RPUSH', KEYS[1], ARGV[1])
local id = redis.call('GET', KEYS[2])
if not id then
  id = ARGV[2]
  redis.call('SET', KEYS[2], id)
end
redis.call('SET', KEYS[3], ARGV[3])
redis.call('SADD', KEYS[4], ARGV[4])
return id
`

// KEYS: list, id, updated, active
// ARGV: customer id, snapshot batch id, fresh batch id, snapshot message ids...
// Returns 0 on mismatch, 1 when the batch is gone, 2 when newer ids remain.
const clearScript = `
local n = #ARGV - 3
if n <= 0 then return 0 end
if redis.call('GET', KEYS[2]) ~= ARGV[2] then return 0 end
local current = redis.call('LRANGE', KEYS[1], 0, n - 1)
if #current ~= n then return 0 end
for i = 1, n do
  if current[i] ~= ARGV[i + 3] then return 0 end
end
redis.call('LTRIM', KEYS[1], n, -1)
if redis.call('LLEN', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
  redis.call('SREM', KEYS[4], ARGV[1])
  return 1
end
redis.call('SET', KEYS[2], ARGV[3])
return 2
`

// StoreOption customizes UpstashRedisBatchRepository.
type StoreOption func(*UpstashRedisBatchRepository)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisBatchRepository) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisBatchRepository) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func WithBatchIDGenerator(fn func() string) StoreOption {
	return func(s *UpstashRedisBatchRepository) {
		if fn != nil {
			s.newBatchID = fn
		}
	}
}

// UpstashRedisBatchRepository keeps pending batches in Upstash Redis via
// its REST API. Every state transition runs as a single EVAL.
type UpstashRedisBatchRepository struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	newBatchID func() string
}

var (
	_ contractx.BatchRepository = (*UpstashRedisBatchRepository)(nil)
	_ contractx.BatchClaimer    = (*UpstashRedisBatchRepository)(nil)
)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" split_words:"true" required:"true"`
	Token     string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"batch:"`
}

func NewUpstashRedisBatchRepository(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisBatchRepository, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisBatchRepository{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix:  defaultStoreKeyPrefix,
		newBatchID: func() string { return uuid.NewString() },
	}
	if p := strings.TrimSpace(cfg.KeyPrefix); p != "" {
		store.keyPrefix = p
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store, nil
}

func (s *UpstashRedisBatchRepository) ListActiveCustomerIDs(ctx context.Context) ([]string, error) {
	resp, err := s.exec(ctx, []any{"SMEMBERS", s.activeKey()})
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := decodeResult(resp.Result, &ids); err != nil {
		return nil, fmt.Errorf("%w: decode active index: %v", contractx.ErrStoreUnavailable, err)
	}
	return ids, nil
}

func (s *UpstashRedisBatchRepository) GetBatch(ctx context.Context, customerID int64) (contractx.PendingBatch, error) {
	keys, err := s.batchKeys(customerID)
	if err != nil {
		return contractx.PendingBatch{}, err
	}

	resp, err := s.exec(ctx, []any{
		"EVAL", snapshotScript, "4", keys.list, keys.id, keys.updated, s.activeKey(),
		strconv.FormatInt(customerID, 10),
	})
	if err != nil {
		return contractx.PendingBatch{}, err
	}

	var parts []json.RawMessage
	if err := decodeResult(resp.Result, &parts); err != nil || len(parts) != 3 {
		return contractx.PendingBatch{}, fmt.Errorf("%w: unexpected snapshot reply %s", contractx.ErrStoreUnavailable, string(resp.Result))
	}

	var (
		batchID string
		updated string
		rawIDs  []string
	)
	if err := decodeResult(parts[0], &batchID); err != nil {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d batch id: %v", contractx.ErrMalformedBatch, customerID, err)
	}
	if err := decodeResult(parts[1], &updated); err != nil {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d timestamp: %v", contractx.ErrMalformedBatch, customerID, err)
	}
	if err := decodeResult(parts[2], &rawIDs); err != nil {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d message ids: %v", contractx.ErrMalformedBatch, customerID, err)
	}

	return ParseBatch(customerID, batchID, updated, rawIDs)
}

func (s *UpstashRedisBatchRepository) AppendMessage(ctx context.Context, customerID, messageID int64, at time.Time) (string, error) {
	keys, err := s.batchKeys(customerID)
	if err != nil {
		return "", err
	}

	resp, err := s.exec(ctx, []any{
		"EVAL", appendScript, "4", keys.list, keys.id, keys.updated, s.activeKey(),
		strconv.FormatInt(messageID, 10),
		s.newBatchID(),
		FormatTimestamp(at),
		strconv.FormatInt(customerID, 10),
	})
	if err != nil {
		return "", err
	}

	var batchID string
	if err := decodeResult(resp.Result, &batchID); err != nil || batchID == "" {
		return "", fmt.Errorf("%w: unexpected append reply %s", contractx.ErrStoreUnavailable, string(resp.Result))
	}
	return batchID, nil
}

func (s *UpstashRedisBatchRepository) ClearBatch(ctx context.Context, batch contractx.PendingBatch) error {
	if len(batch.MessageIDs) == 0 || strings.TrimSpace(batch.BatchID) == "" {
		return fmt.Errorf("%w: empty snapshot for customer %d", contractx.ErrMalformedBatch, batch.CustomerID)
	}
	keys, err := s.batchKeys(batch.CustomerID)
	if err != nil {
		return err
	}

	cmd := []any{
		"EVAL", clearScript, "4", keys.list, keys.id, keys.updated, s.activeKey(),
		strconv.FormatInt(batch.CustomerID, 10),
		batch.BatchID,
		s.newBatchID(),
	}
	for _, id := range batch.MessageIDs {
		cmd = append(cmd, strconv.FormatInt(id, 10))
	}

	resp, err := s.exec(ctx, cmd)
	if err != nil {
		return err
	}

	var outcome int
	if err := decodeResult(resp.Result, &outcome); err != nil {
		return fmt.Errorf("%w: unexpected clear reply %s", contractx.ErrStoreUnavailable, string(resp.Result))
	}
	if outcome == 0 {
		return fmt.Errorf("%w: customer %d batch %s", contractx.ErrBatchConflict, batch.CustomerID, batch.BatchID)
	}
	return nil
}

// ClaimBatch marks the snapshot as owned by this process until ttl elapses.
// It reports false when another worker already holds the claim.
func (s *UpstashRedisBatchRepository) ClaimBatch(ctx context.Context, batch contractx.PendingBatch, ttl time.Duration) (bool, error) {
	key, err := s.claimKey(batch)
	if err != nil {
		return false, err
	}
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	resp, err := s.exec(ctx, []any{"SET", key, "1", "NX", "PX", strconv.FormatInt(ms, 10)})
	if err != nil {
		return false, err
	}
	var reply string
	if err := decodeResult(resp.Result, &reply); err != nil {
		return false, fmt.Errorf("%w: unexpected claim reply %s", contractx.ErrStoreUnavailable, string(resp.Result))
	}
	return reply == "OK", nil
}

func (s *UpstashRedisBatchRepository) ReleaseBatch(ctx context.Context, batch contractx.PendingBatch) error {
	key, err := s.claimKey(batch)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashRedisBatchRepository) claimKey(batch contractx.PendingBatch) (string, error) {
	keys, err := s.batchKeys(batch.CustomerID)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(batch.BatchID)
	if id == "" {
		return "", fmt.Errorf("%w: customer %d has no batch id", contractx.ErrMalformedBatch, batch.CustomerID)
	}
	return keys.list + ":claim:" + id, nil
}

type batchKeySet struct {
	list    string
	id      string
	updated string
}

func (s *UpstashRedisBatchRepository) batchKeys(customerID int64) (batchKeySet, error) {
	if customerID <= 0 {
		return batchKeySet{}, ErrInvalidCustomer
	}
	base := strings.TrimSpace(s.keyPrefix) + strconv.FormatInt(customerID, 10)
	return batchKeySet{
		list:    base,
		id:      base + ":id",
		updated: base + ":updated",
	}, nil
}

func (s *UpstashRedisBatchRepository) activeKey() string {
	return strings.TrimSpace(s.keyPrefix) + activeIndexSuffix
}

func (s *UpstashRedisBatchRepository) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute redis request: %v", contractx.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read redis response: %v", contractx.ErrStoreUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: redis http status=%d body=%s", contractx.ErrStoreUnavailable, resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode redis response: %v", contractx.ErrStoreUnavailable, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrStoreUnavailable, parsed.Error)
	}
	return &parsed, nil
}

func decodeResult(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}
