package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// OracleConfig selects the classification provider and its models.
type OracleConfig struct {
	Engine         string // "gemini"|"openai"|"anthropic"
	GeminiModel    string
	OpenAIModel    string
	AnthropicModel string
	GeminiKey      string
	OpenAIKey      string
	AnthropicKey   string
	Timeout        time.Duration
	WindowSize     int
}

// Model returns the configured model for Engine.
func (o OracleConfig) Model() string {
	switch strings.ToLower(o.Engine) {
	case "openai":
		return o.OpenAIModel
	case "anthropic", "claude":
		return o.AnthropicModel
	default:
		return o.GeminiModel
	}
}

// RenderConfig controls page rasterization.
type RenderConfig struct {
	Scale     float64
	Quality   int
	Grayscale bool
}

// HistoryConfig picks the ledger backend. RedisURL wins over SQLitePath;
// neither means in-memory.
type HistoryConfig struct {
	RedisURL    string
	SQLitePath  string
	Key         string
	Limit       int
	DialTimeout time.Duration
}

// ExportConfig chooses where artifacts are delivered. An S3 bucket wins over
// OutputDir; neither means artifacts are only returned to the caller.
type ExportConfig struct {
	OutputDir   string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port         string
	MaxUploadMB  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Oracle  OracleConfig
	Render  RenderConfig
	History HistoryConfig
	Export  ExportConfig
	Server  ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/docsort.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_docsort",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Oracle defaults
	cfg.Oracle = OracleConfig{
		Engine:         strings.ToLower(getEnv("ORACLE_ENGINE", "gemini")),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet"),
		GeminiKey:      getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		Timeout:        parseDuration(getEnv("ORACLE_TIMEOUT", "60s"), 60*time.Second),
		WindowSize:     parseInt(getEnv("CLASSIFY_WINDOW", "3"), 3),
	}
	if cfg.Oracle.WindowSize <= 0 {
		cfg.Oracle.WindowSize = 3
	}

	// Render defaults
	cfg.Render = RenderConfig{
		Scale:     parseFloat(getEnv("RENDER_SCALE", "1.5"), 1.5),
		Quality:   parseInt(getEnv("RENDER_JPEG_QUALITY", "85"), 85),
		Grayscale: parseBool(getEnv("RENDER_GRAYSCALE", "false")),
	}

	// History defaults
	cfg.History = HistoryConfig{
		RedisURL:    getEnv("HISTORY_REDIS_URL", ""),
		SQLitePath:  getEnv("HISTORY_SQLITE_PATH", "data/history.db"),
		Key:         getEnv("HISTORY_KEY", "docusort_history_v1"),
		Limit:       parseInt(getEnv("HISTORY_LIMIT", "50"), 50),
		DialTimeout: parseDuration(getEnv("HISTORY_DIAL_TIMEOUT", "3s"), 3*time.Second),
	}

	// Export defaults
	cfg.Export = ExportConfig{
		OutputDir:   getEnv("EXPORT_DIR", ""),
		S3Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
		S3Prefix:    getEnv("EXPORT_S3_PREFIX", "exports"),
		S3Region:    getEnv("AWS_REGION", ""),
		S3Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
		S3AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Server defaults
	cfg.Server = ServerConfig{
		Port:         getEnv("PORT", "8080"),
		MaxUploadMB:  parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200),
		ReadTimeout:  parseDuration(getEnv("HTTP_READ_TIMEOUT", "5m"), 5*time.Minute),
		WriteTimeout: parseDuration(getEnv("HTTP_WRITE_TIMEOUT", "15m"), 15*time.Minute),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
