package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/draw"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	ocrInputHeight = 32
	ocrInputWidth  = 320
)

// RemoteOCR calls an HTTP OCR backend with a base64-encoded image,
// bounded by a concurrency limiter and the shared retry policy.
type RemoteOCR struct {
	endpoint string
	token    string
	client   *http.Client
	lim      *limiter
}

// NewRemoteOCR builds a RemoteOCR bounded by concurrency in-flight requests.
func NewRemoteOCR(endpoint, token string, concurrency int) *RemoteOCR {
	return &RemoteOCR{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{},
		lim:      newLimiter(int64(concurrency)),
	}
}

type ocrRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// Extract posts the image to the OCR backend and returns its recognized
// regions. The backend responds with an array of [bbox, text, score]
// triples per region, positional rather than keyed, so each triple is
// decoded element-by-element into an OCRResult.
func (o *RemoteOCR) Extract(ctx context.Context, image []byte) ([]OCRResult, error) {
	var results []OCRResult
	err := o.lim.run(ctx, func() error {
		return withRetry(ctx, func() error {
			body, err := json.Marshal(ocrRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/v1/ocr", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if o.token != "" {
				req.Header.Set("Authorization", "Bearer "+o.token)
			}

			resp, err := o.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ocr backend returned status %d", resp.StatusCode)
			}
			var triples [][]json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&triples); err != nil {
				return err
			}
			parsed := make([]OCRResult, 0, len(triples))
			for _, triple := range triples {
				if len(triple) != 3 {
					return fmt.Errorf("ocr backend: expected [bbox, text, score] triple, got %d elements", len(triple))
				}
				var r OCRResult
				if err := json.Unmarshal(triple[0], &r.BBox); err != nil {
					return fmt.Errorf("ocr backend: decode bbox: %w", err)
				}
				if err := json.Unmarshal(triple[1], &r.Text); err != nil {
					return fmt.Errorf("ocr backend: decode text: %w", err)
				}
				if err := json.Unmarshal(triple[2], &r.Confidence); err != nil {
					return fmt.Errorf("ocr backend: decode score: %w", err)
				}
				parsed = append(parsed, r)
			}
			results = parsed
			return nil
		})
	})
	return results, err
}

// LocalOCR runs a local ONNX text-recognition model via onnxruntime_go,
// grounded in the device-selection and session-setup shape of
// onnxruntime_go-based embedders in the pack (input tensor in, logits
// out, greedy CTC-style decode against a fixed charset).
type LocalOCR struct {
	session *ort.DynamicAdvancedSession
	charset []rune
}

// charsetFilename is the conventional name of the recognizer's label file
// inside modelDir, one UTF-8 rune per line, blank-first for CTC decoding.
const charsetFilename = "charset.txt"

// NewLocalOCR loads the recognition model and its charset from modelDir.
func NewLocalOCR(modelDir string) (*LocalOCR, error) {
	modelPath := filepath.Join(modelDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("gateway: ocr model not found at %s: %w", modelPath, err)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("gateway: init onnx environment: %w", err)
	}

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("gateway: ocr session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("gateway: ocr set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("gateway: ocr set inter threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"image"}, []string{"logits"}, opts)
	if err != nil {
		return nil, fmt.Errorf("gateway: ocr create session: %w", err)
	}

	charset, err := loadCharset(filepath.Join(modelDir, charsetFilename))
	if err != nil {
		session.Destroy()
		return nil, err
	}

	return &LocalOCR{session: session, charset: charset}, nil
}

func loadCharset(path string) ([]rune, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: load ocr charset: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	charset := make([]rune, 0, len(lines)+1)
	charset = append(charset, 0) // CTC blank
	for _, line := range lines {
		r := []rune(line)
		if len(r) == 0 {
			continue
		}
		charset = append(charset, r[0])
	}
	return charset, nil
}

// Extract decodes image, normalizes it to the recognizer's fixed input
// size, runs inference, and greedily CTC-decodes the resulting logits into
// text. The model is recognition-only (no detector/classifier stage), so
// it yields at most one region, whose bbox spans the full normalized
// input frame.
func (o *LocalOCR) Extract(ctx context.Context, imageBytes []byte) ([]OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: decode ocr image: %w", err)
	}

	gray := image.NewGray(image.Rect(0, 0, ocrInputWidth, ocrInputHeight))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Over, nil)

	pixels := make([]float32, ocrInputWidth*ocrInputHeight)
	for i, p := range gray.Pix {
		pixels[i] = (float32(p)/255.0 - 0.5) / 0.5
	}

	shape := ort.NewShape(1, 1, int64(ocrInputHeight), int64(ocrInputWidth))
	input, err := ort.NewTensor(shape, pixels)
	if err != nil {
		return nil, fmt.Errorf("gateway: ocr input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("gateway: ocr inference: %w", err)
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("gateway: unexpected ocr output tensor type")
	}
	text, confidence := ctcGreedyDecode(logits.GetData(), logits.GetShape(), o.charset)
	if text == "" {
		return nil, nil
	}
	return []OCRResult{{
		BBox:       [][2]float64{{0, 0}, {ocrInputWidth, 0}, {ocrInputWidth, ocrInputHeight}, {0, ocrInputHeight}},
		Text:       text,
		Confidence: confidence,
	}}, nil
}

// ctcGreedyDecode collapses repeated timesteps and drops the blank symbol
// (index 0), the standard greedy decode for CTC-trained recognizers.
// Confidence is the mean softmax probability of the selected class across
// the timesteps that contributed a character.
func ctcGreedyDecode(data []float32, shape ort.Shape, charset []rune) (string, float64) {
	if len(shape) < 3 {
		return "", 0
	}
	timesteps := int(shape[1])
	classes := int(shape[2])

	var b strings.Builder
	prev := -1
	var confSum float64
	var confCount int
	for t := 0; t < timesteps; t++ {
		row := data[t*classes : (t+1)*classes]
		best, bestScore := 0, row[0]
		for c := 1; c < classes; c++ {
			if row[c] > bestScore {
				best, bestScore = c, row[c]
			}
		}
		if best != 0 && best != prev && best < len(charset) {
			b.WriteRune(charset[best])
			confSum += softmaxProb(row, best)
			confCount++
		}
		prev = best
	}
	if confCount == 0 {
		return "", 0
	}
	return b.String(), confSum / float64(confCount)
}

// softmaxProb returns the softmax probability of logits[idx].
func softmaxProb(logits []float32, idx int) float64 {
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - maxV))
	}
	return math.Exp(float64(logits[idx]-maxV)) / sum
}

// Close releases the ONNX session.
func (o *LocalOCR) Close() error {
	if o.session != nil {
		o.session.Destroy()
	}
	return nil
}
