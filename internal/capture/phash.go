package capture

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// phashSampleSize is the square side of the downscaled grayscale image fed
// into the DCT and phashHashSize the side of the top-left low-frequency
// corner kept from it, conventional for 64-bit perceptual hashes (8x8
// corner of a 32x32 DCT).
const (
	phashSampleSize = 32
	phashHashSize   = 8
)

// Phash computes a 64-bit perceptual hash of img using the classic
// DCT-based algorithm: downscale to a small grayscale square, run a 2D
// discrete cosine transform, keep the low-frequency corner, and threshold
// each coefficient against the corner's median.
//
// No library in the dependency pack implements perceptual hashing; this
// is implemented directly on image/color plus a hand-rolled DCT, the one
// piece of this component with no ecosystem library to defer to.
func Phash(img image.Image) uint64 {
	gray := image.NewGray(image.Rect(0, 0, phashSampleSize, phashSampleSize))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Over, nil)

	matrix := make([][]float64, phashSampleSize)
	for y := 0; y < phashSampleSize; y++ {
		matrix[y] = make([]float64, phashSampleSize)
		for x := 0; x < phashSampleSize; x++ {
			matrix[y][x] = float64(gray.GrayAt(x, y).Y)
		}
	}

	dct := dct2D(matrix)

	coeffs := make([]float64, 0, phashHashSize*phashHashSize-1)
	for y := 0; y < phashHashSize; y++ {
		for x := 0; x < phashHashSize; x++ {
			if x == 0 && y == 0 {
				continue // skip the DC term, which only encodes overall brightness
			}
			coeffs = append(coeffs, dct[y][x])
		}
	}

	median := medianOf(coeffs)

	var hash uint64
	bit := uint(0)
	for y := 0; y < phashHashSize; y++ {
		for x := 0; x < phashHashSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			if dct[y][x] > median {
				hash |= 1 << bit
			}
			bit++
		}
	}
	return hash
}

// HammingDistance returns the number of differing bits between two
// perceptual hashes.
func HammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// dct2D runs a separable 2D DCT-II over an NxN matrix.
func dct2D(matrix [][]float64) [][]float64 {
	n := len(matrix)
	tmp := make([][]float64, n)
	for i := range tmp {
		tmp[i] = dct1D(matrix[i])
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = tmp[y][x]
		}
		transformed := dct1D(col)
		for y := 0; y < n; y++ {
			out[y][x] = transformed[y]
		}
	}
	return out
}

// dct1D runs a naive O(n^2) DCT-II on a single row/column. n stays small
// (32) so the quadratic cost is negligible versus image decode/encode.
func dct1D(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		alpha := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			alpha = math.Sqrt(1.0 / float64(n))
		}
		out[k] = alpha * sum
	}
	return out
}
