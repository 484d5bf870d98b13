package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arkohut/screenmemory/internal/config"
	"github.com/arkohut/screenmemory/internal/logging"
	"go.uber.org/zap"
)

// Loop runs the capture+dedup cycle on a fixed interval, one tick at a
// time: ticks never overlap, a slow tick delays but never stacks the
// next one.
type Loop struct {
	capturer DisplayCapturer
	baseDir  string
	interval time.Duration
	threshold int
	log      *logging.Logger
}

// NewLoop builds a capture Loop from cfg and a DisplayCapturer supplied
// by the embedder.
func NewLoop(cfg *config.Config, capturer DisplayCapturer, log *logging.Logger) *Loop {
	return &Loop{
		capturer:  capturer,
		baseDir:   cfg.ScreenshotsDir,
		interval:  cfg.RecordInterval.Duration(),
		threshold: cfg.Threshold,
		log:       log,
	}
}

// Run blocks, ticking every l.interval until ctx is canceled. Each tick is
// fully sequential: capture, hash, compare, maybe-write, flush sidecars —
// the next tick is scheduled only after the current one completes.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			start := time.Now()
			if err := l.tick(ctx); err != nil && ctx.Err() == nil {
				l.log.Error(ctx, "capture tick failed", zap.Error(err))
			}
			elapsed := time.Since(start)
			next := l.interval - elapsed
			if next < 0 {
				next = 0
			}
			timer.Reset(next)
		}
	}
}

// tick captures one frame, deduplicates it, and writes it to disk if
// novel.
func (l *Loop) tick(ctx context.Context) error {
	frame, err := l.capturer.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}

	dayDir := filepath.Join(l.baseDir, frame.CapturedAt.Format("20060102"))
	side, err := openSidecars(dayDir)
	if err != nil {
		return err
	}

	screen := frame.ScreenName
	if screen == "" {
		screen = "main"
	}

	hash := Phash(frame.Image)
	if prev, ok := side.PreviousHash(screen); ok && HammingDistance(prev, hash) < l.threshold {
		return side.AppendWorklog(fmt.Sprintf("%s skip screen=%s dist<%d", frame.CapturedAt.Format(time.RFC3339), screen, l.threshold))
	}

	seq := side.NextSequence(screen)
	meta := Metadata{
		Timestamp:    frame.CapturedAt,
		ActiveApp:    frame.ActiveApp,
		ActiveWindow: frame.ActiveWindow,
		ScreenName:   screen,
		Sequence:     seq,
	}

	webpBytes, err := EncodeWebP(frame.Image, 0)
	if err != nil {
		return err
	}
	webpBytes, err = EmbedMetadata(webpBytes, meta)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("screenshot-%s-of-%s.webp", frame.CapturedAt.Format("20060102-150405"), screen)
	path := filepath.Join(dayDir, filename)
	if err := os.WriteFile(path, webpBytes, 0o644); err != nil {
		return fmt.Errorf("capture: write screenshot: %w", err)
	}

	side.Record(screen, hash)
	if err := side.Flush(); err != nil {
		return err
	}
	return side.AppendWorklog(fmt.Sprintf("%s write screen=%s seq=%d file=%s", frame.CapturedAt.Format(time.RFC3339), screen, seq, filename))
}
