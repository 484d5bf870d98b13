package capture

import (
	"context"
	"image"
	"image/color"
	"time"
)

// StubCapturer returns a deterministic solid-color frame, standing in
// for the real OS capture primitive in tests and headless builds;
// platform-specific capture is supplied by the embedder.
type StubCapturer struct {
	Width, Height int
	Color         color.Color
	SessionID     string
	Now           func() time.Time
}

// NewStubCapturer returns a StubCapturer producing 64x64 mid-gray frames.
func NewStubCapturer() *StubCapturer {
	return &StubCapturer{
		Width:     64,
		Height:    64,
		Color:     color.Gray{Y: 128},
		SessionID: "stub-session",
		Now:       time.Now,
	}
}

// Capture implements DisplayCapturer.
func (s *StubCapturer) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			img.Set(x, y, s.Color)
		}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &Frame{Image: img, CapturedAt: now()}, nil
}
