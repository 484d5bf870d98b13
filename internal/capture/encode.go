package capture

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

// webpQuality: screenshots are stored at WebP quality 85, a balance
// between archive size and text legibility for later OCR passes.
const webpQuality = 85

// EncodeWebP downscales img to maxWidth (preserving aspect ratio, no-op if
// img is already narrower) and encodes it as lossy WebP.
func EncodeWebP(img image.Image, maxWidth int) ([]byte, error) {
	img = downscale(img, maxWidth)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: webpQuality}); err != nil {
		return nil, fmt.Errorf("capture: encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img
	}
	scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, h*maxWidth/w))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)
	return scaled
}
