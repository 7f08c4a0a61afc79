package cmd

import (
	"context"
	"fmt"
	"strings"

	orchestratorx "github.com/kalpit-S/ai-support-agent/agent/agents/orchestrator"
	batchx "github.com/kalpit-S/ai-support-agent/agent/batch"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	llmx "github.com/kalpit-S/ai-support-agent/agent/llm"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	statex "github.com/kalpit-S/ai-support-agent/agent/state"
	toolx "github.com/kalpit-S/ai-support-agent/agent/tool"
	configx "github.com/kalpit-S/ai-support-agent/pkg/config"
	dbx "github.com/kalpit-S/ai-support-agent/pkg/database"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	qstashx "github.com/kalpit-S/ai-support-agent/pkg/qstash"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

const (
	batchStoreRedis  = "redis"
	batchStoreMemory = "memory"
)

type AppConfig struct {
	// BatchStore selects where pending batches live. memory only works when
	// the API and the worker share a process.
	BatchStore string `envconfig:"BATCH_STORE" default:"redis"`
}

func openRepository() (*repox.Repository, *bun.DB, error) {
	cfg, err := configx.New[dbx.Config]("DATABASE")
	if err != nil {
		return nil, nil, err
	}
	db, err := dbx.Open(*cfg)
	if err != nil {
		return nil, nil, err
	}
	return repox.New(db), db, nil
}

func openBatches(allowMemory bool) (contractx.BatchRepository, error) {
	app, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(app.BatchStore)) {
	case batchStoreMemory:
		if !allowMemory {
			return nil, fmt.Errorf("batch store %q needs serve --with-worker", batchStoreMemory)
		}
		log.Warn().Msg("using in-process batch store, pending batches are lost on restart")
		return statex.NewMemoryBatchRepository(), nil
	case batchStoreRedis, "":
		cfg, err := configx.New[statex.UpstashRedisConfig]("REDIS")
		if err != nil {
			return nil, err
		}
		return statex.NewUpstashRedisBatchRepository(*cfg)
	default:
		return nil, fmt.Errorf("unknown batch store %q", app.BatchStore)
	}
}

func newDispatcher(repo *repox.Repository, m *metricsx.Metrics) (*toolx.Dispatcher, error) {
	return toolx.NewDispatcher(repo, toolx.WithMetrics(m))
}

func newBatchHandler(ctx context.Context, repo *repox.Repository, m *metricsx.Metrics) (*orchestratorx.Handler, error) {
	llmCfg, err := configx.New[llmx.Config]("OPENROUTER")
	if err != nil {
		return nil, err
	}
	gateway, err := llmx.New(ctx, *llmCfg, m)
	if err != nil {
		return nil, err
	}

	tools, err := newDispatcher(repo, m)
	if err != nil {
		return nil, err
	}
	engine, err := orchestratorx.NewEngine(gateway, tools, orchestratorx.WithEngineMetrics(m))
	if err != nil {
		return nil, err
	}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	var notifier contractx.ReplyNotifier
	if qstashCfg.Enabled() {
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return nil, err
		}
		notifier = client
	}

	return orchestratorx.NewHandler(repo, engine, notifier)
}

// runWorker polls for ready batches and keeps the backlog gauge fresh until
// ctx is cancelled.
func runWorker(ctx context.Context, batches contractx.BatchRepository, handler contractx.BatchHandler, m *metricsx.Metrics) error {
	cfg, err := configx.New[batchx.Config]("BATCH")
	if err != nil {
		return err
	}

	scheduler, err := batchx.New(batches, handler, *cfg, batchx.WithMetrics(m))
	if err != nil {
		return err
	}
	monitor, err := batchx.NewBacklogMonitor(batches, m, cfg.MonitorSpec)
	if err != nil {
		return err
	}

	monitor.Start()
	defer func() { <-monitor.Stop().Done() }()

	return scheduler.Run(ctx)
}

func runAll(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
