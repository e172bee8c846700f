package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Web         WebConfig         `yaml:"web"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Database    DatabaseConfig    `yaml:"-"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // "*" allows any origin
}

// Addr returns the listen address in host:port form.
func (c *WebConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

type EmbeddingConfig struct {
	URL               string  `yaml:"url"`                 // InsightFace embedding service base URL
	TimeoutSeconds    int     `yaml:"timeout_seconds"`     // per-request timeout
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables rate limiting
	MaxImageSize      int     `yaml:"max_image_size"`      // longest side in pixels before upload
}

// Timeout returns the request timeout as a duration.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type GalleryConfig struct {
	Path string `yaml:"path"` // a .zst suffix enables compression
}

type RecognitionConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`  // score must be strictly greater to match
	NoMatchMessage string  `yaml:"no_match_message"` // printf format, %.2f receives the score
}

type AttendanceConfig struct {
	LogPath        string `yaml:"log_path"`
	DefaultAddress string `yaml:"default_address"`
}

type IngestConfig struct {
	Dir        string   `yaml:"dir"`
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, attendance goes to CSV when empty
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// Defaults returns the configuration embedded in the binary, without
// environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	cfg.Database = DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 2}
	return &cfg
}

// Load returns the embedded defaults overridden by environment variables.
func Load() *Config {
	cfg := Defaults()

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins)

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.TimeoutSeconds = envInt("EMBEDDING_TIMEOUT", cfg.Embedding.TimeoutSeconds)
	cfg.Embedding.RequestsPerSecond = envFloat("EMBEDDING_RPS", cfg.Embedding.RequestsPerSecond)
	cfg.Embedding.MaxImageSize = envInt("EMBEDDING_MAX_IMAGE_SIZE", cfg.Embedding.MaxImageSize)

	cfg.Gallery.Path = envString("GALLERY_PATH", cfg.Gallery.Path)
	cfg.Recognition.MatchThreshold = envFloat("MATCH_THRESHOLD", cfg.Recognition.MatchThreshold)
	cfg.Recognition.NoMatchMessage = envString("NO_MATCH_MESSAGE", cfg.Recognition.NoMatchMessage)

	cfg.Attendance.LogPath = envString("ATTENDANCE_LOG", cfg.Attendance.LogPath)
	cfg.Attendance.DefaultAddress = envString("ATTENDANCE_DEFAULT_ADDRESS", cfg.Attendance.DefaultAddress)

	cfg.Ingest.Dir = envString("INGEST_DIR", cfg.Ingest.Dir)
	cfg.Ingest.Workers = envInt("INGEST_WORKERS", cfg.Ingest.Workers)
	cfg.Ingest.Extensions = envList("INGEST_EXTENSIONS", cfg.Ingest.Extensions)

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	return cfg
}
