package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arkohut/screenmemory/internal/capture"
	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/gateway"
)

// ocrPlugin adapts gateway.OCR into the in-process Plugin contract.
type ocrPlugin struct{ ocr gateway.OCR }

// NewOCRPlugin wraps an OCR backend as a Plugin writing the "ocr_result"
// metadata key.
func NewOCRPlugin(ocr gateway.OCR) Plugin { return &ocrPlugin{ocr: ocr} }

func (p *ocrPlugin) Name() string { return "builtin_ocr" }

func (p *ocrPlugin) Handle(ctx context.Context, event EntityReady) (string, string, catalog.MetadataDataType, error) {
	data, err := os.ReadFile(event.Filepath)
	if err != nil {
		return "", "", "", fmt.Errorf("ocr plugin: read %s: %w", event.Filepath, err)
	}
	results, err := p.ocr.Extract(ctx, data)
	if err != nil {
		return "", "", "", fmt.Errorf("ocr plugin: %w", err)
	}
	if len(results) == 0 {
		return "", "", "", nil
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return "", "", "", fmt.Errorf("ocr plugin: encode result: %w", err)
	}
	return "ocr_result", string(encoded), catalog.DataTypeJSON, nil
}

// captionPlugin adapts gateway.Captioner into the Plugin contract.
type captionPlugin struct{ captioner gateway.Captioner }

// NewCaptionPlugin wraps a Captioner backend as a Plugin writing the
// "caption_result" metadata key.
func NewCaptionPlugin(captioner gateway.Captioner) Plugin { return &captionPlugin{captioner: captioner} }

func (p *captionPlugin) Name() string { return "builtin_caption" }

func (p *captionPlugin) Handle(ctx context.Context, event EntityReady) (string, string, catalog.MetadataDataType, error) {
	data, err := os.ReadFile(event.Filepath)
	if err != nil {
		return "", "", "", fmt.Errorf("caption plugin: read %s: %w", event.Filepath, err)
	}
	caption, err := p.captioner.Caption(ctx, data)
	if err != nil {
		return "", "", "", fmt.Errorf("caption plugin: %w", err)
	}
	return "caption_result", caption, catalog.DataTypeText, nil
}

// MetadataFromContainer reads the embedded RIFF metadata chunk of a
// captured screenshot, used by the batch-scan per-file routine when the
// file is an image.
func MetadataFromContainer(path string) (*capture.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return capture.ExtractMetadata(data)
}
