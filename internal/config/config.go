// Package config provides the immutable pipeline configuration: decimal
// precisions, directory layout, download settings, and logging options.
// Configuration is loaded from an optional JSON file with environment
// variable overrides and validated before any component runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the complete pipeline configuration. It is built once at startup
// and passed by value to components; nothing mutates it afterwards.
type Config struct {
	// Data locates the on-disk directory layout.
	Data DataConfig `json:"data"`

	// Precision controls decimal quantization of emitted values.
	Precision PrecisionConfig `json:"precision"`

	// Download configures the archive downloader.
	Download DownloadConfig `json:"download"`

	// Logging configures slog output.
	Logging LoggingConfig `json:"logging"`
}

// DataConfig names the directories in the fixed data layout:
// <BaseDir>/<dir>/<symbol>/<symbol>.<date>.<ext> for raw per-day files and
// <BaseDir>/<dir>/<symbol>.<span>/<symbol>.<span>.<ext> for derived artifacts.
type DataConfig struct {
	BaseDir        string `json:"base_dir" env:"TICKHIST_BASE_DIR"`
	TickCSVDir     string `json:"tick_csv_dir"`
	TickParquetDir string `json:"tick_parquet_dir"`
	PrepCSVDir     string `json:"prep_csv_dir"`
	PrepParquetDir string `json:"prep_parquet_dir"`
	AggrCSVDir     string `json:"aggr_csv_dir"`
	AggrParquetDir string `json:"aggr_parquet_dir"`
	AggrDBDir      string `json:"aggr_db_dir"`
}

// PrecisionConfig fixes the number of fractional digits for each quantized
// field. These determine output bytes, so they must not change between runs
// against the same store.
type PrecisionConfig struct {
	PriceDecimals     int32 `json:"price_decimals" env:"TICKHIST_PRICE_DECIMALS"`
	VolumeDecimals    int32 `json:"volume_decimals" env:"TICKHIST_VOLUME_DECIMALS"`
	TimestampDecimals int32 `json:"timestamp_decimals" env:"TICKHIST_TIMESTAMP_DECIMALS"`
}

// DownloadConfig configures the archive downloader. RequestInterval paces
// listing and file requests; Concurrency bounds parallel transfers.
type DownloadConfig struct {
	BaseURL           string        `json:"base_url" env:"TICKHIST_BASE_URL"`
	Concurrency       int           `json:"concurrency" env:"TICKHIST_CONCURRENCY"`
	RequestInterval   time.Duration `json:"request_interval"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        uint64        `json:"max_retries"`
	BackfillTolerance int           `json:"backfill_tolerance"`
}

// LoggingConfig configures slog output format and optional rotating file.
type LoggingConfig struct {
	Level      string `json:"level" env:"TICKHIST_LOG_LEVEL"`   // debug, info, warn, error
	Format     string `json:"format" env:"TICKHIST_LOG_FORMAT"` // text, json
	File       string `json:"file" env:"TICKHIST_LOG_FILE"`     // empty = stderr only
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	return Config{
		Data: DataConfig{
			BaseDir:        "data",
			TickCSVDir:     "tick_csv",
			TickParquetDir: "tick_parquet",
			PrepCSVDir:     "preprocessed_csv",
			PrepParquetDir: "preprocessed_parquet",
			AggrCSVDir:     "ohlcv_csv",
			AggrParquetDir: "ohlcv_parquet",
			AggrDBDir:      "ohlcv_db",
		},
		Precision: PrecisionConfig{
			PriceDecimals:     2,
			VolumeDecimals:    4,
			TimestampDecimals: 6,
		},
		Download: DownloadConfig{
			BaseURL:           "https://public.bybit.com/trading/",
			Concurrency:       5,
			RequestInterval:   100 * time.Millisecond,
			Timeout:           10 * time.Minute,
			MaxRetries:        3,
			BackfillTolerance: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, an optional JSON file, and
// environment overrides, then validates it. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded values.
func (c *Config) applyEnv() {
	if v := os.Getenv("TICKHIST_BASE_DIR"); v != "" {
		c.Data.BaseDir = v
	}
	if v := os.Getenv("TICKHIST_BASE_URL"); v != "" {
		c.Download.BaseURL = v
	}
	if v := os.Getenv("TICKHIST_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Download.Concurrency = n
		}
	}
	if v := os.Getenv("TICKHIST_PRICE_DECIMALS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Precision.PriceDecimals = int32(n)
		}
	}
	if v := os.Getenv("TICKHIST_VOLUME_DECIMALS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Precision.VolumeDecimals = int32(n)
		}
	}
	if v := os.Getenv("TICKHIST_TIMESTAMP_DECIMALS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Precision.TimestampDecimals = int32(n)
		}
	}
	if v := os.Getenv("TICKHIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TICKHIST_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TICKHIST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks configuration preconditions. It runs before any I/O side
// effects so a bad configuration never produces partial output.
func (c *Config) Validate() error {
	if c.Precision.PriceDecimals < 0 {
		return fmt.Errorf("price_decimals must be >= 0, got %d", c.Precision.PriceDecimals)
	}
	if c.Precision.VolumeDecimals < 0 {
		return fmt.Errorf("volume_decimals must be >= 0, got %d", c.Precision.VolumeDecimals)
	}
	if c.Precision.TimestampDecimals < 0 {
		return fmt.Errorf("timestamp_decimals must be >= 0, got %d", c.Precision.TimestampDecimals)
	}
	if c.Download.Concurrency < 1 {
		return fmt.Errorf("download concurrency must be >= 1, got %d", c.Download.Concurrency)
	}
	if c.Download.BaseURL == "" {
		return fmt.Errorf("download base_url must not be empty")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Dir resolves a layout directory name against the base directory.
func (c *Config) Dir(name string) string {
	return filepath.Join(c.Data.BaseDir, name)
}
