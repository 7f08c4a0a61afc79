package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	configx "github.com/kalpit-S/ai-support-agent/pkg/config"
	logx "github.com/kalpit-S/ai-support-agent/pkg/logger"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCommand assembles the CLI. Each call returns an independent tree.
func NewRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "support-agent",
		Short:         "Multi-channel customer support agent for Macrocenter PC Parts",
		Long:          "Receives SMS and email messages, batches them per customer and answers each batch with a tool-using language model.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env when present)")

	root.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newMCPCommand(),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
