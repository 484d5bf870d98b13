package capture

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arkohut/screenmemory/internal/config"
	"github.com/arkohut/screenmemory/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPhash_IdenticalImagesMatch(t *testing.T) {
	a := Phash(solidImage(color.Gray{Y: 100}))
	b := Phash(solidImage(color.Gray{Y: 100}))
	assert.Equal(t, 0, HammingDistance(a, b))
}

func TestPhash_DifferentImagesDiffer(t *testing.T) {
	// A solid image carries only the DC term, which Phash skips, so the
	// second image needs spatial structure: left half white, right half black.
	split := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 32 {
				split.Set(x, y, color.White)
			} else {
				split.Set(x, y, color.Black)
			}
		}
	}
	a := Phash(solidImage(color.Gray{Y: 10}))
	b := Phash(split)
	assert.Greater(t, HammingDistance(a, b), 0)
}

func TestEncodeWebP_RoundTripsMetadata(t *testing.T) {
	img := solidImage(color.Gray{Y: 50})
	webpBytes, err := EncodeWebP(img, 0)
	require.NoError(t, err)

	meta := Metadata{
		Timestamp:    time.Unix(1700000000, 0).UTC(),
		ActiveApp:    "editor",
		ActiveWindow: "main.go",
		ScreenName:   "main",
		Sequence:     3,
	}
	withMeta, err := EmbedMetadata(webpBytes, meta)
	require.NoError(t, err)

	got, err := ExtractMetadata(withMeta)
	require.NoError(t, err)
	assert.Equal(t, meta.ActiveApp, got.ActiveApp)
	assert.Equal(t, meta.ScreenName, got.ScreenName)
	assert.Equal(t, meta.Sequence, got.Sequence)
}

func TestLoop_DedupSkipsIdenticalFrames(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ScreenshotsDir = dir
	cfg.Threshold = 4
	cfg.RecordInterval = config.Duration(4 * time.Second)

	fixedTime := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	capturer := &StubCapturer{Width: 64, Height: 64, Color: color.Gray{Y: 128}, SessionID: "s", Now: func() time.Time { return fixedTime }}

	loop := NewLoop(cfg, capturer, logging.NewTestLogger().Logger)

	require.NoError(t, loop.tick(context.Background()))
	fixedTime = fixedTime.Add(4 * time.Second)
	require.NoError(t, loop.tick(context.Background()))

	dayDir := filepath.Join(dir, "20240102")
	entries, err := os.ReadDir(dayDir)
	require.NoError(t, err)

	webpCount := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".webp" {
			webpCount++
		}
	}
	assert.Equal(t, 1, webpCount)
}
