package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// BacklogMonitor periodically publishes the number of pending batches.
type BacklogMonitor struct {
	repo    contractx.BatchRepository
	metrics *metricsx.Metrics
	cron    *cron.Cron
}

func NewBacklogMonitor(repo contractx.BatchRepository, m *metricsx.Metrics, spec string) (*BacklogMonitor, error) {
	if repo == nil {
		return nil, errors.New("batch repository is required")
	}
	if spec == "" {
		spec = "@every 15s"
	}

	mon := &BacklogMonitor{
		repo:    repo,
		metrics: m,
		cron:    cron.New(),
	}
	if _, err := mon.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := mon.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("backlog refresh failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule backlog monitor %q: %w", spec, err)
	}
	return mon, nil
}

func (m *BacklogMonitor) Start() {
	m.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a
// running refresh has finished.
func (m *BacklogMonitor) Stop() context.Context {
	return m.cron.Stop()
}

func (m *BacklogMonitor) Refresh(ctx context.Context) (int, error) {
	ids, err := m.repo.ListActiveCustomerIDs(ctx)
	if err != nil {
		return 0, err
	}
	m.metrics.SetPending(len(ids))
	log.Debug().Int("pending", len(ids)).Msg("backlog refreshed")
	return len(ids), nil
}
