// Package capture implements the capture loop: pulling a screenshot
// from the display, deduplicating it against the previous frame via
// perceptual hashing, and persisting the kept frame as a WebP
// file with embedded JSON metadata.
package capture

import (
	"context"
	"encoding/json"
	"image"
	"time"
)

// Frame is one captured screen image along with its source timestamp.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
	// ScreenName identifies which display the frame came from; sequence
	// counters and previous-hash sidecars are keyed per screen.
	ScreenName string
	ActiveApp    string
	ActiveWindow string
}

// DisplayCapturer abstracts the platform-specific screen-capture
// primitive. Production embedders supply a real implementation;
// StubCapturer backs tests and headless builds.
type DisplayCapturer interface {
	Capture(ctx context.Context) (*Frame, error)
}

// Metadata is the JSON payload embedded in each captured WebP file.
// Extra carries the keys appended after processing (is_thumbnail,
// ocr_result, <model>_result, …) so the embedded JSON remains the
// single ground-truth document as plugins run.
type Metadata struct {
	Timestamp    time.Time `json:"-"`
	ActiveApp    string    `json:"-"`
	ActiveWindow string    `json:"-"`
	ScreenName   string    `json:"-"`
	Sequence     int64     `json:"-"`
	Extra        map[string]string `json:"-"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	flat := map[string]any{
		"timestamp":     m.Timestamp,
		"active_app":    m.ActiveApp,
		"active_window": m.ActiveWindow,
		"screen_name":   m.ScreenName,
		"sequence":      m.Sequence,
	}
	for k, v := range m.Extra {
		flat[k] = v
	}
	return json.Marshal(flat)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if raw, ok := flat["timestamp"]; ok {
		_ = json.Unmarshal(raw, &m.Timestamp)
		delete(flat, "timestamp")
	}
	if raw, ok := flat["active_app"]; ok {
		_ = json.Unmarshal(raw, &m.ActiveApp)
		delete(flat, "active_app")
	}
	if raw, ok := flat["active_window"]; ok {
		_ = json.Unmarshal(raw, &m.ActiveWindow)
		delete(flat, "active_window")
	}
	if raw, ok := flat["screen_name"]; ok {
		_ = json.Unmarshal(raw, &m.ScreenName)
		delete(flat, "screen_name")
	}
	if raw, ok := flat["sequence"]; ok {
		_ = json.Unmarshal(raw, &m.Sequence)
		delete(flat, "sequence")
	}
	if len(flat) > 0 {
		m.Extra = make(map[string]string, len(flat))
		for k, raw := range flat {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				m.Extra[k] = s
			} else {
				m.Extra[k] = string(raw)
			}
		}
	}
	return nil
}

// HasIsThumbnail reports whether the metadata carries an is_thumbnail
// flag, regardless of its value: presence alone triggers the
// cosmetic-rewrite path.
func (m Metadata) HasIsThumbnail() bool {
	_, ok := m.Extra["is_thumbnail"]
	return ok
}
