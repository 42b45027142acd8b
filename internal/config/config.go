package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all daemon configuration
type Config struct {
	// API Configuration
	API APIConfig

	// Extractor Configuration
	Extractor ExtractorConfig

	// Engine Configuration
	Engine EngineConfig

	// Output Configuration
	Output OutputConfig

	// History Configuration
	History HistoryConfig

	// Logging Configuration
	Logger LoggerConfig

	// Cleanup Configuration
	Cleanup CleanupConfig
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ExtractorConfig holds extraction backend configuration
type ExtractorConfig struct {
	YtdlpPath    string
	FFmpegPath   string
	ProbeTimeout time.Duration
	CancelGrace  time.Duration
	StagingDir   string
	CookiesFile  string // Existing cookie file passed to the backend as-is
	Cookies      string // Inline Netscape cookie text, staged per run
}

// EngineConfig holds download engine configuration
type EngineConfig struct {
	OutputTemplate string
	GateRecheck    time.Duration
}

// OutputConfig holds final file placement configuration
type OutputConfig struct {
	Dir        string // Destination for finished downloads
	LibraryDir string // Optional shared-library mirror; empty disables export
}

// HistoryConfig holds the download history store configuration
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	OutputPath string // stdout, file path
}

// CleanupConfig holds staging-area cleanup configuration
type CleanupConfig struct {
	Enabled  bool          // Enable automatic cleanup
	Interval time.Duration // How often to run cleanup
	MaxAge   time.Duration // Delete staged leftovers older than this
	LogDir   string        // Log directory
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	dataDir := getEnv("AURA_DATA_DIR", "./data")

	cfg := &Config{
		API: APIConfig{
			Port:         getEnvInt("API_PORT", 8080),
			Host:         getEnv("API_HOST", "127.0.0.1"),
			ReadTimeout:  getEnvDuration("API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("API_WRITE_TIMEOUT", 30*time.Second),
		},
		Extractor: ExtractorConfig{
			YtdlpPath:    getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
			ProbeTimeout: getEnvDuration("PROBE_TIMEOUT", 1*time.Minute),
			CancelGrace:  getEnvDuration("CANCEL_GRACE", 5*time.Second),
			StagingDir:   getEnv("STAGING_DIR", filepath.Join(dataDir, "staging")),
			CookiesFile:  getEnv("COOKIES_FILE", ""),
			Cookies:      getEnv("COOKIES", ""),
		},
		Engine: EngineConfig{
			OutputTemplate: getEnv("OUTPUT_TEMPLATE", "%(title)s.%(ext)s"),
			GateRecheck:    getEnvDuration("GATE_RECHECK", 2*time.Second),
		},
		Output: OutputConfig{
			Dir:        getEnv("OUTPUT_DIR", filepath.Join(dataDir, "downloads")),
			LibraryDir: getEnv("LIBRARY_DIR", ""),
		},
		History: HistoryConfig{
			Enabled: getEnvBool("HISTORY_ENABLED", true),
			Path:    getEnv("HISTORY_PATH", filepath.Join(dataDir, "history.db")),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Cleanup: CleanupConfig{
			Enabled:  getEnvBool("CLEANUP_ENABLED", true),
			Interval: getEnvDuration("CLEANUP_INTERVAL", 1*time.Hour),
			MaxAge:   getEnvDuration("CLEANUP_MAX_AGE", 24*time.Hour),
			LogDir:   getEnv("CLEANUP_LOG_DIR", "./logs"),
		},
	}

	// Validate critical configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Extractor.YtdlpPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}

	if c.Extractor.FFmpegPath == "" {
		return fmt.Errorf("FFMPEG_PATH is required")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.API.Port)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("HISTORY_PATH is required when history is enabled")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
