package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// embeddingRoundDecimals: embeddings are rounded to 5 decimal places
// before being written to the vector index; query-time embeddings stay
// raw.
const embeddingRoundDecimals = 5

// LocalEmbedder generates embeddings with a local fastembed-go/ONNX model,
// grounded in the teacher's internal/embeddings/fastembed.go FastEmbedProvider.
type LocalEmbedder struct {
	model *fastembed.FlagEmbedding
	dim   int
	mu    sync.RWMutex
}

var fastembedDims = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.AllMiniLML6V2: 384,
}

// NewLocalEmbedder loads model into modelCacheDir, defaulting to the
// 768-dimension bge-base-en-v1.5 model.
func NewLocalEmbedder(modelName, cacheDir string) (*LocalEmbedder, error) {
	model := fastembed.BGEBaseENV15
	if modelName != "" {
		model = fastembed.EmbeddingModel(modelName)
	}
	dim, ok := fastembedDims[model]
	if !ok {
		return nil, fmt.Errorf("gateway: unsupported local embedding model %q", modelName)
	}
	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: init local embedder: %w", err)
	}
	return &LocalEmbedder{model: flag, dim: dim}, nil
}

// Embed returns the rounded, store-ready embedding for document text
// (entities_vec writes).
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out, err := e.model.PassageEmbed([]string{text}, 256)
	if err != nil {
		return nil, fmt.Errorf("gateway: local embed: %w", err)
	}
	return roundEmbedding(out[0]), nil
}

// EmbedQuery returns the raw, unrounded embedding for a search query.
func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("gateway: local query embed: %w", err)
	}
	return out, nil
}

// Dim returns the embedding vector dimension.
func (e *LocalEmbedder) Dim() int { return e.dim }

// Close releases the underlying ONNX session.
func (e *LocalEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model.Destroy()
	}
	return nil
}

// RemoteEmbedder calls an HTTP embedding backend, used when
// embedding.use_local is false.
type RemoteEmbedder struct {
	endpoint string
	model    string
	dim      int
	client   *http.Client
	lim      *limiter
}

// NewRemoteEmbedder builds a RemoteEmbedder bounded by concurrency
// in-flight requests.
func NewRemoteEmbedder(endpoint, model string, dim, concurrency int) *RemoteEmbedder {
	return &RemoteEmbedder{
		endpoint: endpoint,
		model:    model,
		dim:      dim,
		client:   &http.Client{},
		lim:      newLimiter(int64(concurrency)),
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *RemoteEmbedder) call(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := e.lim.run(ctx, func() error {
		return withRetry(ctx, func() error {
			body, err := json.Marshal(embeddingRequest{Model: e.model, Input: text})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/v1/embeddings", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := e.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("embedding backend returned status %d", resp.StatusCode)
			}

			var parsed embeddingResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return err
			}
			if len(parsed.Data) == 0 {
				return fmt.Errorf("embedding backend returned no data")
			}
			result = parsed.Data[0].Embedding
			return nil
		})
	})
	return result, err
}

// Embed returns the rounded embedding for document text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.call(ctx, text)
	if err != nil {
		return nil, err
	}
	return roundEmbedding(v), nil
}

// EmbedQuery returns the raw embedding for a search query.
func (e *RemoteEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.call(ctx, text)
}

// Dim returns the embedding vector dimension.
func (e *RemoteEmbedder) Dim() int { return e.dim }

func roundEmbedding(v []float32) []float32 {
	out := make([]float32, len(v))
	scale := math.Pow(10, embeddingRoundDecimals)
	for i, f := range v {
		out[i] = float32(math.Round(float64(f)*scale) / scale)
	}
	return out
}
