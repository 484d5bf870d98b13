// Package gateway implements the Model Gateway: the single seam through
// which the rest of the system reaches OCR, captioning and
// embedding backends, whether local (ONNX/fastembed) or remote (HTTP).
package gateway

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTransport wraps a failed round trip to a remote OCR/caption/embedding
// backend, distinguishing it from validation errors at the caller.
var ErrTransport = errors.New("gateway: transport error")

const (
	retryAttempts = 3
	retryBackoff  = 2 * time.Second
)

// OCRResult is one recognized text region: its bounding polygon (an
// ordered list of [x,y] corners), the recognized text, and the
// recognizer's confidence score.
type OCRResult struct {
	BBox       [][2]float64 `json:"bbox"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
}

// OCR extracts machine-readable text from an image as an ordered list of
// recognized regions.
type OCR interface {
	Extract(ctx context.Context, image []byte) ([]OCRResult, error)
}

// Captioner produces a natural-language description of an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

// Embedder turns text into a fixed-dimension vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// limiter bounds concurrent in-flight calls to a single backend capability
// The gateway owns its own worker pool, distinct from the I/O runtime
// and from the ingestion pipeline's pool.
type limiter struct {
	sem *semaphore.Weighted
}

func newLimiter(weight int64) *limiter {
	if weight <= 0 {
		weight = 1
	}
	return &limiter{sem: semaphore.NewWeighted(weight)}
}

func (l *limiter) run(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}

// withRetry calls fn up to retryAttempts times with a fixed back-off,
// returning the last error wrapped in ErrTransport if every attempt fails.
// A flat retry loop, no exponential jitter.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		t := time.NewTimer(retryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return errors.Join(ErrTransport, lastErr)
}
