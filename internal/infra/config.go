package infra

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
// The client fields drive cmd/studio, the server fields drive cmd/stubapi.
type Config struct {
	AppEnv string

	// Client
	APIBase           string
	DebounceDelay     time.Duration
	PollInterval      time.Duration
	ImageModel        string
	ImageSize         string
	OutputDir         string
	HTTPClientTimeout time.Duration

	// Stub backend
	Port               string
	PublicBaseURL      string
	DatabaseURL        string
	StoragePath        string
	StubStep           time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from the environment (and optional .env files)
// and applies defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	port := getEnv("PORT", "8001")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		APIBase:            strings.TrimRight(getEnv("STUDIO_API_BASE", "http://127.0.0.1:8001"), "/"),
		DebounceDelay:      getEnvMillis("STUDIO_DEBOUNCE_MS", 800),
		PollInterval:       getEnvMillis("STUDIO_POLL_INTERVAL_MS", 500),
		ImageModel:         getEnv("STUDIO_IMAGE_MODEL", "gpt-image-1"),
		ImageSize:          getEnv("STUDIO_IMAGE_SIZE", "1024x1024"),
		OutputDir:          getEnv("STUDIO_OUTPUT_DIR", "Project/data/outputs"),
		HTTPClientTimeout:  time.Second * time.Duration(getEnvInt("HTTP_CLIENT_TIMEOUT_SECONDS", 30)),
		Port:               port,
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:"+port), "/"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StoragePath:        getEnv("STORAGE_PATH", "./data/projects"),
		StubStep:           getEnvMillis("STUB_STEP_MS", 400),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 800 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Millisecond * time.Duration(getEnvInt(key, fallback))
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
