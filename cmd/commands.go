package cmd

import (
	"context"
	"errors"
	"os"

	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	"github.com/kalpit-S/ai-support-agent/api/httpapi"
	"github.com/kalpit-S/ai-support-agent/api/mcpserver"
	configx "github.com/kalpit-S/ai-support-agent/pkg/config"
	logx "github.com/kalpit-S/ai-support-agent/pkg/logger"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and debug HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			httpCfg, err := configx.New[httpapi.Config]("HTTP")
			if err != nil {
				return err
			}
			repo, db, err := openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			batches, err := openBatches(withWorker)
			if err != nil {
				return err
			}

			m := metricsx.New()
			router := httpapi.NewRouter(httpapi.Deps{Store: repo, Batches: batches, Metrics: m})
			tasks := []func(context.Context) error{
				func(ctx context.Context) error { return httpapi.Serve(ctx, *httpCfg, router) },
			}

			if withWorker {
				handler, err := newBatchHandler(ctx, repo, m)
				if err != nil {
					return err
				}
				tasks = append(tasks, func(ctx context.Context) error {
					return runWorker(ctx, batches, handler, m)
				})
			}

			return runAll(ctx, tasks...)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the batch worker in this process")
	return cmd
}

func newWorkerCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Answer ready message batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			repo, db, err := openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			batches, err := openBatches(false)
			if err != nil {
				return err
			}

			m := metricsx.New()
			handler, err := newBatchHandler(ctx, repo, m)
			if err != nil {
				return err
			}

			opsCfg := httpapi.Config{Addr: metricsAddr}
			return runAll(ctx,
				func(ctx context.Context) error { return runWorker(ctx, batches, handler, m) },
				func(ctx context.Context) error { return httpapi.Serve(ctx, opsCfg, httpapi.NewOpsRouter(m)) },
			)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the health and metrics endpoint")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, db, err := openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repo.CreateSchema(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog, orders, inventory and help articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, db, err := openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repo.CreateSchema(cmd.Context()); err != nil {
				return err
			}
			if err := repo.Seed(cmd.Context(), repox.NewDemoData()); err != nil {
				return err
			}
			log.Info().Msg("demo data loaded")
			return nil
		},
	}
}

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the support tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol, so logs move to stderr.
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			log.Logger = logx.New(os.Stderr, *logCfg)

			repo, db, err := openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			tools, err := newDispatcher(repo, nil)
			if err != nil {
				return err
			}

			log.Info().Msg("mcp server listening on stdio")
			err = server.NewStdioServer(mcpserver.NewServer(tools)).Listen(cmd.Context(), os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
