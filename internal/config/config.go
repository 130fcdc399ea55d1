package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Remote  RemoteConfig
	Chat    ChatConfig
	Upload  UploadConfig
	Events  EventsConfig
	Tracing TracingConfig
}

type AppConfig struct {
	Environment    string
	LogFilePath    string
	AdminMode      bool // UI-only gate, not a security boundary
	MockServerAddr string
}

type RemoteConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type ChatConfig struct {
	DefaultModel string
	Timezone     string
}

type UploadConfig struct {
	MaxUploadSize int64
}

type EventsConfig struct {
	NatsURL string
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

const (
	DefaultBaseURL       = "http://127.0.0.1:5000"
	DefaultMaxUploadSize = "50MB"
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:    getEnv("GO_ENV", "development"),
			LogFilePath:    getEnv("LOG_FILE_PATH", "logs/spaces-client.log"),
			AdminMode:      getEnvAsBool("SPACES_ADMIN_MODE", false),
			MockServerAddr: getEnv("MOCK_SERVER_ADDR", "127.0.0.1:5000"),
		},
		Remote: RemoteConfig{
			BaseURL:        strings.TrimRight(getEnv("SPACES_BASE_URL", DefaultBaseURL), "/"),
			RequestTimeout: getEnvAsDuration("SPACES_REQUEST_TIMEOUT", 120*time.Second),
		},
		Chat: ChatConfig{
			DefaultModel: getEnv("SPACES_DEFAULT_MODEL", "llama3"),
			Timezone:     getEnv("SPACES_TIMEZONE", "Local"),
		},
		Upload: UploadConfig{
			MaxUploadSize: getEnvAsSize("SPACES_MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		},
		Events: EventsConfig{
			NatsURL: getEnv("NATS_URL", ""),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// Location resolves the configured timezone, falling back to time.Local.
func (c ChatConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[WARN] Unknown timezone %q, using local time", c.Timezone)
		return time.Local
	}
	return loc
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil && value > 0 {
		return value
	}
	return fallback
}

func getEnvAsSize(key, fallback string) int64 {
	if size, err := units.FromHumanSize(getEnv(key, fallback)); err == nil && size > 0 {
		return size
	}
	size, _ := units.FromHumanSize(fallback)
	return size
}
