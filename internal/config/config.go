// Package config provides configuration loading for screenmemoryd.
//
// Configuration is loaded from a YAML file with environment-variable
// overrides layered on top, following the precedence:
//
//  1. Environment variables (e.g. SERVER_PORT, VLM_ENDPOINT)
//  2. YAML config file (~/.config/screenmemory/config.yaml)
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config holds the complete screenmemoryd configuration.
type Config struct {
	BaseDir        string `koanf:"base_dir"`
	DatabasePath   string `koanf:"database_path"`
	ScreenshotsDir string `koanf:"screenshots_dir"`
	DefaultLibrary string `koanf:"default_library"`

	ServerHost string `koanf:"server_host"`
	ServerPort int    `koanf:"server_port"`

	VLM       VLMConfig       `koanf:"vlm"`
	OCR       OCRConfig       `koanf:"ocr"`
	Embedding EmbeddingConfig `koanf:"embedding"`

	RecordInterval Duration `koanf:"record_interval"`
	Threshold      int      `koanf:"threshold"`
	DefaultPlugins []string `koanf:"default_plugins"`
	BatchSize      int      `koanf:"batchsize"`
	SparsityFactor float64  `koanf:"sparsity_factor"`

	NATS    NATSConfig    `koanf:"nats"`
	Logging LoggingConfig `koanf:"logging"`
}

// VLMConfig configures the captioning backend.
type VLMConfig struct {
	ModelName   string `koanf:"modelname"`
	Endpoint    string `koanf:"endpoint"`
	Token       Secret `koanf:"token"`
	Concurrency int    `koanf:"concurrency"`
	ForceJPEG   bool   `koanf:"force_jpeg"`
	Prompt      string `koanf:"prompt"`
}

// OCRConfig configures the OCR backend.
type OCRConfig struct {
	Endpoint    string `koanf:"endpoint"`
	Token       Secret `koanf:"token"`
	Concurrency int    `koanf:"concurrency"`
	UseLocal    bool   `koanf:"use_local"`
	ForceJPEG   bool   `koanf:"force_jpeg"`
	ModelDir    string `koanf:"model_dir"`
}

// EmbeddingConfig configures the text-embedding backend.
type EmbeddingConfig struct {
	NumDim        int    `koanf:"num_dim"`
	Endpoint      string `koanf:"endpoint"`
	Model         string `koanf:"model"`
	UseModelScope bool   `koanf:"use_modelscope"`
	UseLocal      bool   `koanf:"use_local"`
	CacheDir      string `koanf:"cache_dir"`
	Concurrency   int    `koanf:"concurrency"`
}

// NATSConfig configures the optional entity-ready fan-out transport,
// off by default and enabled only when URL is set.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// LoggingConfig configures the ambient zap-based logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a Config populated with production-sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".screenmemory")
	return &Config{
		BaseDir:        base,
		DatabasePath:   filepath.Join(base, "database.db"),
		ScreenshotsDir: filepath.Join(base, "screenshots"),
		DefaultLibrary: "screenshots",

		ServerHost: "localhost",
		ServerPort: 8839,

		VLM: VLMConfig{
			ModelName:   "qwen2-vl-2b-instruct",
			Endpoint:    "http://localhost:8088",
			Concurrency: 8,
			ForceJPEG:   true,
			Prompt:      "Describe this screenshot in detail, focusing on the content and the application in use.",
		},
		OCR: OCRConfig{
			Endpoint:    "http://localhost:8089",
			Concurrency: 8,
			UseLocal:    true,
			ForceJPEG:   false,
		},
		Embedding: EmbeddingConfig{
			NumDim:      768,
			Endpoint:    "http://localhost:8090",
			Model:       "jinaai/jina-embeddings-v2-base-en",
			UseLocal:    true,
			Concurrency: 8,
		},

		RecordInterval: Duration(4e9), // 4s
		Threshold:      4,
		DefaultPlugins: []string{"builtin_ocr"},
		BatchSize:      8,
		SparsityFactor: 1.0,

		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.ServerPort)
	}
	if c.BaseDir == "" {
		return errors.New("base_dir must not be empty")
	}
	if err := validatePath(c.BaseDir); err != nil {
		return fmt.Errorf("invalid base_dir: %w", err)
	}
	if c.RecordInterval.Duration() <= 0 {
		return errors.New("record_interval must be positive")
	}
	if c.Threshold < 0 {
		return errors.New("threshold must be non-negative")
	}
	if c.BatchSize < 1 {
		return errors.New("batchsize must be at least 1")
	}
	if c.Embedding.NumDim < 1 {
		return errors.New("embedding.num_dim must be positive")
	}

	if c.VLM.Endpoint != "" {
		if err := validateURL(c.VLM.Endpoint); err != nil {
			return fmt.Errorf("invalid vlm.endpoint: %w", err)
		}
	}
	if c.OCR.Endpoint != "" && !c.OCR.UseLocal {
		if err := validateURL(c.OCR.Endpoint); err != nil {
			return fmt.Errorf("invalid ocr.endpoint: %w", err)
		}
	}
	if c.Embedding.Endpoint != "" && !c.Embedding.UseLocal {
		if err := validateURL(c.Embedding.Endpoint); err != nil {
			return fmt.Errorf("invalid embedding.endpoint: %w", err)
		}
	}
	if c.NATS.URL != "" {
		if err := validateHostname(hostOnly(c.NATS.URL)); err != nil {
			return fmt.Errorf("invalid nats.url: %w", err)
		}
	}
	return nil
}

func hostOnly(urlOrHost string) string {
	h := strings.TrimPrefix(urlOrHost, "nats://")
	if i := strings.Index(h, ":"); i >= 0 {
		h = h[:i]
	}
	return h
}

// validateHostname checks if a hostname is safe (no command injection attempts).
func validateHostname(host string) error {
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal).
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))
		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
