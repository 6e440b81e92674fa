package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the vote submission worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		a, err := newApp(ctx, log)
		if err != nil {
			return err
		}
		defer a.Close()

		worker, err := a.newWorker()
		if err != nil {
			return err
		}
		defer worker.Close()

		log.Info("submission worker started", "retry_base_delay", a.cfg.RetryBaseDelay)
		return worker.Run(ctx)
	},
}
