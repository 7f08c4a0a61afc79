package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const clearTimeout = 10 * time.Second

type Config struct {
	Window         time.Duration `envconfig:"WINDOW" default:"5s"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	Concurrency    int           `envconfig:"CONCURRENCY" default:"4"`
	BackoffFactor  int           `envconfig:"BACKOFF_FACTOR" default:"5"`
	HandlerTimeout time.Duration `envconfig:"HANDLER_TIMEOUT" default:"2m"`
	MonitorSpec    string        `envconfig:"MONITOR_SPEC" default:"@every 15s"`
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 5
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 2 * time.Minute
	}
	return c
}

type Option func(*Scheduler)

func WithMetrics(m *metricsx.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler polls the batch repository and hands idle batches to a handler.
// A customer never has more than one handler running at a time.
type Scheduler struct {
	repo    contractx.BatchRepository
	claimer contractx.BatchClaimer
	handler contractx.BatchHandler
	cfg     Config
	metrics *metricsx.Metrics

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	pool errgroup.Group

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func New(repo contractx.BatchRepository, handler contractx.BatchHandler, cfg Config, opts ...Option) (*Scheduler, error) {
	if repo == nil {
		return nil, errors.New("batch repository is required")
	}
	if handler == nil {
		return nil, errors.New("batch handler is required")
	}

	s := &Scheduler{
		repo:     repo,
		handler:  handler,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		after:    time.After,
		inflight: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.pool.SetLimit(s.cfg.Concurrency)
	if c, ok := repo.(contractx.BatchClaimer); ok {
		s.claimer = c
	}

	return s, nil
}

// FindReadyBatches returns every batch idle for at least the window.
// Unparsable ids and malformed batches are logged and skipped. Any other
// repository error aborts the scan.
func (s *Scheduler) FindReadyBatches(ctx context.Context, now time.Time) ([]contractx.PendingBatch, error) {
	rawIDs, err := s.repo.ListActiveCustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active customers: %w", err)
	}

	seen := make(map[int64]struct{}, len(rawIDs))
	ready := make([]contractx.PendingBatch, 0)

	for _, raw := range rawIDs {
		customerID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || customerID <= 0 {
			log.Warn().Str("raw_customer_id", raw).Msg("skipping batch with invalid customer id")
			continue
		}
		if _, dup := seen[customerID]; dup {
			continue
		}
		seen[customerID] = struct{}{}

		batch, err := s.repo.GetBatch(ctx, customerID)
		switch {
		case errors.Is(err, contractx.ErrBatchNotFound):
			log.Debug().Int64("customer_id", customerID).Msg("batch vanished before read")
			continue
		case errors.Is(err, contractx.ErrMalformedBatch):
			log.Warn().Err(err).Int64("customer_id", customerID).Msg("skipping malformed batch")
			continue
		case err != nil:
			return nil, fmt.Errorf("get batch customer=%d: %w", customerID, err)
		}

		if now.Sub(batch.LastUpdated) < s.cfg.Window {
			continue
		}
		ready = append(ready, batch)
	}

	return ready, nil
}

// RunOnce performs one poll. Ready batches are dispatched to the worker
// pool; a batch that finds its customer busy or the pool full waits for the
// next tick. The returned error is always a store failure.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ready, err := s.FindReadyBatches(ctx, s.now())
	if err != nil {
		s.metrics.StoreError()
		return err
	}
	if len(ready) > 0 {
		log.Info().Int("count", len(ready)).Msg("found ready batches")
	}

	for _, batch := range ready {
		if !s.acquire(batch.CustomerID) {
			log.Debug().Int64("customer_id", batch.CustomerID).Msg("customer already in flight")
			continue
		}

		b := batch
		started := s.pool.TryGo(func() error {
			defer s.release(b.CustomerID)
			s.process(ctx, b)
			return nil
		})
		if !started {
			s.release(b.CustomerID)
			log.Debug().Int64("customer_id", b.CustomerID).Msg("worker pool saturated, retrying next tick")
		}
	}

	return nil
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Dur("window", s.cfg.Window).
		Dur("poll_interval", s.cfg.PollInterval).
		Int("concurrency", s.cfg.Concurrency).
		Msg("batch scheduler starting")
	defer s.Wait()

	for {
		delay := s.cfg.PollInterval
		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay = s.cfg.PollInterval * time.Duration(s.cfg.BackoffFactor)
			log.Error().Err(err).Dur("backoff", delay).Msg("queue store unavailable, backing off")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("batch scheduler stopping")
			return nil
		case <-s.after(delay):
		}
	}
}

// Wait blocks until every dispatched handler has returned.
func (s *Scheduler) Wait() {
	_ = s.pool.Wait()
}

func (s *Scheduler) process(ctx context.Context, batch contractx.PendingBatch) {
	logger := log.With().
		Int64("customer_id", batch.CustomerID).
		Str("batch_id", batch.BatchID).
		Int("messages", len(batch.MessageIDs)).
		Logger()

	if s.claimer != nil {
		claimed, err := s.claimer.ClaimBatch(ctx, batch, s.cfg.HandlerTimeout+clearTimeout)
		if err != nil {
			logger.Error().Err(err).Msg("batch claim failed, retrying next tick")
			s.metrics.StoreError()
			return
		}
		if !claimed {
			logger.Debug().Msg("batch claimed by another worker")
			return
		}
		defer s.releaseClaim(ctx, batch, logger)
	}

	logger.Info().Msg("processing batch")
	started := time.Now()

	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
	err := s.invoke(hctx, batch)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("batch handler failed, batch retained")
		s.metrics.ObserveBatch(metricsx.StatusFailed, time.Since(started))
		return
	}

	cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	defer ccancel()
	if err := s.repo.ClearBatch(cctx, batch); err != nil {
		if errors.Is(err, contractx.ErrBatchConflict) {
			logger.Warn().Err(err).Msg("batch changed before cleanup")
		} else {
			logger.Error().Err(err).Msg("batch cleanup failed")
		}
	} else {
		logger.Info().Msg("batch cleaned up")
	}
	s.metrics.ObserveBatch(metricsx.StatusOK, time.Since(started))
}

func (s *Scheduler) releaseClaim(ctx context.Context, batch contractx.PendingBatch, logger zerolog.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	defer cancel()
	if err := s.claimer.ReleaseBatch(rctx, batch); err != nil {
		logger.Warn().Err(err).Msg("batch claim release failed")
	}
}

func (s *Scheduler) invoke(ctx context.Context, batch contractx.PendingBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch handler panic: %v", r)
		}
	}()
	return s.handler.Handle(ctx, batch)
}

func (s *Scheduler) acquire(customerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[customerID]; busy {
		return false
	}
	s.inflight[customerID] = struct{}{}
	return true
}

func (s *Scheduler) release(customerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, customerID)
}
