package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"provermon/internal/app"
	"provermon/internal/config"
	logx "provermon/pkg/logx"
)

const stopTimeout = 10 * time.Second

func newRunCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the prover and notify until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, f)
		},
	}
}

func runMonitor(cmd *cobra.Command, f *rootFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgm := config.NewManager(f.options(), logx.NewConsole("INFO"))
	if _, err := cfgm.Load(); err != nil {
		return err
	}

	a, err := app.New(cfgm)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return fmt.Errorf("start: %w", err)
	}

	select {
	case <-ctx.Done():
		a.Logger().Info("shutdown signal received")
	case <-a.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	stopErr := a.Stop(stopCtx)
	if err := a.Err(); err != nil {
		return err
	}
	return stopErr
}
