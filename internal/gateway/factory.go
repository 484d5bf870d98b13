package gateway

import (
	"fmt"

	"github.com/arkohut/screenmemory/internal/config"
)

// Gateway bundles the three model backends behind a single handle so
// callers (the ingestion pipeline) only need one object.
type Gateway struct {
	OCR       OCR
	Captioner Captioner
	Embedder  Embedder
}

// New builds a Gateway from cfg, choosing local or remote backends per
// OCRConfig.UseLocal / EmbeddingConfig.UseLocal.
func New(cfg *config.Config) (*Gateway, error) {
	gw := &Gateway{
		Captioner: NewRemoteCaptioner(
			cfg.VLM.Endpoint, cfg.VLM.Token.Value(), cfg.VLM.ModelName,
			cfg.VLM.Prompt, cfg.VLM.ForceJPEG, cfg.VLM.Concurrency,
		),
	}

	if cfg.OCR.UseLocal {
		local, err := NewLocalOCR(cfg.OCR.ModelDir)
		if err != nil {
			return nil, fmt.Errorf("gateway: local ocr: %w", err)
		}
		gw.OCR = local
	} else {
		gw.OCR = NewRemoteOCR(cfg.OCR.Endpoint, cfg.OCR.Token.Value(), cfg.OCR.Concurrency)
	}

	if cfg.Embedding.UseLocal {
		local, err := NewLocalEmbedder(cfg.Embedding.Model, cfg.Embedding.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("gateway: local embedder: %w", err)
		}
		gw.Embedder = local
	} else {
		gw.Embedder = NewRemoteEmbedder(cfg.Embedding.Endpoint, cfg.Embedding.Model, cfg.Embedding.NumDim, cfg.Embedding.Concurrency)
	}

	return gw, nil
}

// Close releases any resources (ONNX sessions, model weights) held by
// local backends.
func (g *Gateway) Close() error {
	var firstErr error
	if c, ok := g.OCR.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c, ok := g.Embedder.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
