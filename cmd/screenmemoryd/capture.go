package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/arkohut/screenmemory/internal/capture"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run the capture+dedup loop until interrupted",
	Long: `capture runs the per-display capture loop on the configured
record_interval, writing novel frames (pHash Hamming distance >= threshold
since the last saved frame) to screenshots_dir and skipping duplicates.

No platform-specific display capturer ships with this build; capture
runs against the stub capturer, useful for exercising
the dedup loop and sidecar bookkeeping end to end.`,
	RunE: runCapture,
}

func runCapture(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loop := capture.NewLoop(a.cfg, capture.NewStubCapturer(), a.log)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
