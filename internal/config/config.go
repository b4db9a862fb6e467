// Package config loads loreseek configuration with layered precedence:
// hardcoded defaults, then the user config, then the project config,
// then LORESEEK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/search"
)

// ProjectFileName is the per-project configuration file.
const ProjectFileName = ".loreseek.yaml"

// projectFileFallback is the accepted alternate extension.
const projectFileFallback = ".loreseek.yml"

// Config is the complete loreseek configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Sources    SourcesConfig    `yaml:"sources" json:"sources"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle" json:"lifecycle"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StorageConfig locates the on-disk index and operational state.
type StorageConfig struct {
	// DataDir holds the vector collections and alias manifest.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// BlobPath is the SQLite database for run history and
	// reconciliation markers.
	BlobPath string `yaml:"blob_path" json:"blob_path"`
}

// SourcesConfig locates extracted documents awaiting indexing.
type SourcesConfig struct {
	// SpoolDir is the root directory of extracted-document spools; each
	// base collection reads from SpoolDir/<base>.
	SpoolDir string `yaml:"spool_dir" json:"spool_dir"`
	// Collections lists the base collection names to manage.
	Collections []string `yaml:"collections" json:"collections"`
	// WatchDebounce coalesces spool file events before triggering work.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	// DenseWeight, SparseWeight and KeywordWeight must each be
	// non-negative and sum to 1.0.
	DenseWeight   float64 `yaml:"dense_weight" json:"dense_weight"`
	SparseWeight  float64 `yaml:"sparse_weight" json:"sparse_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	DefaultLimit int    `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int    `yaml:"max_limit" json:"max_limit"`
	QueryTimeout string `yaml:"query_timeout" json:"query_timeout"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static", or empty for auto-detection.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// LifecycleConfig tunes rebuild runs.
type LifecycleConfig struct {
	// AdminTimeout bounds alias swaps and collection deletion.
	AdminTimeout string `yaml:"admin_timeout" json:"admin_timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	weights := search.DefaultWeights()
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir:  defaultDataDir(),
			BlobPath: filepath.Join(defaultDataDir(), "state.db"),
		},
		Sources: SourcesConfig{
			SpoolDir:      filepath.Join(defaultDataDir(), "spool"),
			Collections:   nil,
			WatchDebounce: "500ms",
		},
		Search: SearchConfig{
			DenseWeight:   weights.Dense,
			SparseWeight:  weights.Sparse,
			KeywordWeight: weights.Keyword,
			DefaultLimit:  5,
			MaxLimit:      50,
			QueryTimeout:  "60s",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // auto-detect: ollama if reachable, else static
			Model:      "nomic-embed-text",
			Dimensions: 0, // detected from the embedder
			BatchSize:  32,
			OllamaHost: "", // empty uses http://localhost:11434
			CacheSize:  1000,
		},
		Lifecycle: LifecycleConfig{
			AdminTimeout: "60s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".loreseek")
	}
	return filepath.Join(home, ".loreseek")
}

// GetUserConfigPath returns the user configuration file path, following
// the XDG base directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loreseek", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "loreseek", "config.yaml")
	}
	return filepath.Join(home, ".config", "loreseek", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the effective configuration for a project directory,
// applying in order of increasing precedence: defaults, user config,
// project config, environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{ProjectFileName, projectFileFallback} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads an explicitly named configuration file. Unlike Load, a
// missing file is an error here.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s does not exist", path), nil)
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges one YAML file's non-zero values over the receiver.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("read config file %s", path), err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("parse config file %s", path), err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c. Zero weights mean
// "not set"; an explicit zero weight is expressed via env override.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.BlobPath != "" {
		c.Storage.BlobPath = other.Storage.BlobPath
	}

	if other.Sources.SpoolDir != "" {
		c.Sources.SpoolDir = other.Sources.SpoolDir
	}
	if len(other.Sources.Collections) > 0 {
		c.Sources.Collections = other.Sources.Collections
	}
	if other.Sources.WatchDebounce != "" {
		c.Sources.WatchDebounce = other.Sources.WatchDebounce
	}

	if other.Search.DenseWeight != 0 {
		c.Search.DenseWeight = other.Search.DenseWeight
	}
	if other.Search.SparseWeight != 0 {
		c.Search.SparseWeight = other.Search.SparseWeight
	}
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.QueryTimeout != "" {
		c.Search.QueryTimeout = other.Search.QueryTimeout
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Lifecycle.AdminTimeout != "" {
		c.Lifecycle.AdminTimeout = other.Lifecycle.AdminTimeout
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies LORESEEK_* environment variables, the
// highest-precedence layer. Weight overrides accept explicit zeros.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LORESEEK_DENSE_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.DenseWeight = w
		}
	}
	if v := os.Getenv("LORESEEK_SPARSE_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SparseWeight = w
		}
	}
	if v := os.Getenv("LORESEEK_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.KeywordWeight = w
		}
	}

	if v := os.Getenv("LORESEEK_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("LORESEEK_SPOOL_DIR"); v != "" {
		c.Sources.SpoolDir = v
	}

	if v := os.Getenv("LORESEEK_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// LORESEEK_EMBEDDER is an alias for LORESEEK_EMBEDDINGS_PROVIDER.
	if v := os.Getenv("LORESEEK_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("LORESEEK_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LORESEEK_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}

	if v := os.Getenv("LORESEEK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("LORESEEK_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// Weights returns the configured fusion weights.
func (c *Config) Weights() search.Weights {
	return search.Weights{
		Dense:   c.Search.DenseWeight,
		Sparse:  c.Search.SparseWeight,
		Keyword: c.Search.KeywordWeight,
	}
}

// QueryTimeout parses the configured query timeout.
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.QueryTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AdminTimeout parses the configured lifecycle admin timeout.
func (c *Config) AdminTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lifecycle.AdminTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// WatchDebounce parses the configured spool debounce window.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Sources.WatchDebounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate checks the final merged configuration.
func (c *Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}

	if c.Search.DefaultLimit < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"search.max_limit %d is below search.default_limit %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if _, err := time.ParseDuration(c.Search.QueryTimeout); err != nil {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"search.query_timeout %q is not a duration", c.Search.QueryTimeout)
	}
	if _, err := time.ParseDuration(c.Lifecycle.AdminTimeout); err != nil {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"lifecycle.admin_timeout %q is not a duration", c.Lifecycle.AdminTimeout)
	}
	if _, err := time.ParseDuration(c.Sources.WatchDebounce); err != nil {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"sources.watch_debounce %q is not a duration", c.Sources.WatchDebounce)
	}

	if c.Embeddings.Provider != "" {
		valid := map[string]bool{"ollama": true, "static": true}
		if !valid[strings.ToLower(c.Embeddings.Provider)] {
			return errors.Newf(errors.ErrCodeConfigInvalid,
				"embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.Dimensions < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}

	if c.Server.Transport != "stdio" {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	levels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !levels[strings.ToLower(c.Server.LogLevel)] {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
