package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	debug   bool
	logJSON bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fundtrace",
		Short:         "Identify and manage transaction chains",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  debug || util.GetEnvBool("DEBUG", false),
				JSON:   logJSON,
				Output: cmd.ErrOrStderr(),
			}))
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")

	root.AddCommand(newIdentifyCmd(), newMigrateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
