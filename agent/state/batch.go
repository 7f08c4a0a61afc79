package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

// FormatTimestamp encodes t as float unix seconds, the format stored under
// the batch's :updated key.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/float64(time.Second), 'f', 6, 64)
}

func ParseTimestamp(raw string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, fmt.Errorf("timestamp out of range: %s", raw)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC(), nil
}

// ParseBatch validates the raw values read for one customer. A batch with
// no values at all is reported as not found.
func ParseBatch(customerID int64, batchID, updated string, rawIDs []string) (contractx.PendingBatch, error) {
	batchID = strings.TrimSpace(batchID)
	updated = strings.TrimSpace(updated)

	if batchID == "" && updated == "" && len(rawIDs) == 0 {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d", contractx.ErrBatchNotFound, customerID)
	}
	if batchID == "" {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d has no batch id", contractx.ErrMalformedBatch, customerID)
	}
	if len(rawIDs) == 0 {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d has no message ids", contractx.ErrMalformedBatch, customerID)
	}

	lastUpdated, err := ParseTimestamp(updated)
	if err != nil {
		return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d timestamp %q: %v", contractx.ErrMalformedBatch, customerID, updated, err)
	}

	ids := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return contractx.PendingBatch{}, fmt.Errorf("%w: customer %d message id %q", contractx.ErrMalformedBatch, customerID, raw)
		}
		ids = append(ids, id)
	}

	return contractx.PendingBatch{
		CustomerID:  customerID,
		BatchID:     batchID,
		MessageIDs:  ids,
		LastUpdated: lastUpdated,
	}, nil
}
