package state

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

type memoryBatch struct {
	batchID    string
	messageIDs []int64
	updated    time.Time
}

// MemoryBatchRepository is an in-process BatchRepository. It keeps the same
// transition rules as the Redis repository under a single mutex.
type MemoryBatchRepository struct {
	mu         sync.Mutex
	batches    map[int64]*memoryBatch
	newBatchID func() string
}

var _ contractx.BatchRepository = (*MemoryBatchRepository)(nil)

func NewMemoryBatchRepository() *MemoryBatchRepository {
	return &MemoryBatchRepository{
		batches:    make(map[int64]*memoryBatch),
		newBatchID: func() string { return uuid.NewString() },
	}
}

func (m *MemoryBatchRepository) ListActiveCustomerIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.batches))
	for id := range m.batches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out, nil
}

func (m *MemoryBatchRepository) GetBatch(_ context.Context, customerID int64) (contractx.PendingBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[customerID]
	if !ok {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d", contractx.ErrBatchNotFound, customerID)
	}
	return contractx.PendingBatch{
		CustomerID:  customerID,
		BatchID:     b.batchID,
		MessageIDs:  slices.Clone(b.messageIDs),
		LastUpdated: b.updated,
	}, nil
}

func (m *MemoryBatchRepository) AppendMessage(_ context.Context, customerID, messageID int64, at time.Time) (string, error) {
	if customerID <= 0 {
		return "", ErrInvalidCustomer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[customerID]
	if !ok {
		b = &memoryBatch{batchID: m.newBatchID()}
		m.batches[customerID] = b
	}
	b.messageIDs = append(b.messageIDs, messageID)
	b.updated = at.UTC()
	return b.batchID, nil
}

func (m *MemoryBatchRepository) ClearBatch(_ context.Context, batch contractx.PendingBatch) error {
	if len(batch.MessageIDs) == 0 || batch.BatchID == "" {
		return fmt.Errorf("%w: empty snapshot for customer %d", contractx.ErrMalformedBatch, batch.CustomerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[batch.CustomerID]
	if !ok || b.batchID != batch.BatchID || len(b.messageIDs) < len(batch.MessageIDs) ||
		!slices.Equal(b.messageIDs[:len(batch.MessageIDs)], batch.MessageIDs) {
		return fmt.Errorf("%w: customer %d batch %s", contractx.ErrBatchConflict, batch.CustomerID, batch.BatchID)
	}

	rest := b.messageIDs[len(batch.MessageIDs):]
	if len(rest) == 0 {
		delete(m.batches, batch.CustomerID)
		return nil
	}
	b.messageIDs = slices.Clone(rest)
	b.batchID = m.newBatchID()
	return nil
}
