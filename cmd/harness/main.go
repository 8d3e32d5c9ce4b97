// Command harness checks that the world is deterministic by replaying a
// recorded session on several clones and comparing their significant state
// after every step.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeusync/lockstep/internal/core/observability/log"
)

func main() {
	var level string
	logger := log.New(log.LevelInfo)
	defer func() { _ = logger.Sync() }()

	root := &cobra.Command{
		Use:           "harness",
		Short:         "Determinism tools for recorded sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.SetLevel(log.ParseLevel(level))
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "debug, info, warn or error")
	root.AddCommand(newRunCommand(logger), newRecordCommand(logger))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
