package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Dashboard DashboardConfig
	Analyzer  AnalyzerConfig
	Redis     RedisConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Logging   LoggingConfig
}

type DashboardConfig struct {
	APIBaseURL      string
	RequestTimeout  time.Duration
	RedeliveryDelay time.Duration
	RetryInterval   time.Duration
	RetryAttempts   int
}

type AnalyzerConfig struct {
	ListenAddr     string
	UploadDir      string
	MaxUploadBytes int64
	Workers        int
	AllowedOrigins []string
}

// RedisConfig is optional. An empty Host keeps chat context in memory.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type LoggingConfig struct {
	Level string
	File  string
}

// Load reads .env (if present) and the environment. Validation is left to
// the binary since each one needs different sections.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Dashboard: DashboardConfig{
			APIBaseURL:      getEnv("DASHBOARD_API_BASE_URL", "http://localhost:5000"),
			RequestTimeout:  time.Duration(getEnvInt("DASHBOARD_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
			RedeliveryDelay: time.Duration(getEnvInt("DASHBOARD_REDELIVERY_DELAY_MS", 500)) * time.Millisecond,
			RetryInterval:   time.Duration(getEnvInt("DASHBOARD_STORE_RETRY_INTERVAL_MS", 100)) * time.Millisecond,
			RetryAttempts:   getEnvInt("DASHBOARD_STORE_RETRY_ATTEMPTS", 50),
		},
		Analyzer: AnalyzerConfig{
			ListenAddr:     getEnv("ANALYZER_LISTEN_ADDR", ":5000"),
			UploadDir:      getEnv("ANALYZER_UPLOAD_DIR", "uploads"),
			MaxUploadBytes: int64(getEnvInt("ANALYZER_MAX_UPLOAD_MB", 10)) * 1024 * 1024,
			Workers:        getEnvInt("ANALYZER_WORKERS", 4),
			AllowedOrigins: parseCommaSeparated(getEnv("ANALYZER_ALLOWED_ORIGINS", "")),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_SESSION_TTL_MINUTES", 60)) * time.Minute,
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) ValidateDashboard() error {
	if c.Dashboard.APIBaseURL == "" {
		return fmt.Errorf("DASHBOARD_API_BASE_URL is required")
	}
	if c.Dashboard.RequestTimeout <= 0 {
		return fmt.Errorf("DASHBOARD_REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.Dashboard.RetryAttempts <= 0 {
		return fmt.Errorf("DASHBOARD_STORE_RETRY_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) ValidateAnalyzer() error {
	if c.Analyzer.ListenAddr == "" {
		return fmt.Errorf("ANALYZER_LISTEN_ADDR is required")
	}
	if c.Analyzer.UploadDir == "" {
		return fmt.Errorf("ANALYZER_UPLOAD_DIR is required")
	}
	if c.Analyzer.MaxUploadBytes <= 0 {
		return fmt.Errorf("ANALYZER_MAX_UPLOAD_MB must be positive")
	}
	if c.Analyzer.Workers <= 0 {
		return fmt.Errorf("ANALYZER_WORKERS must be positive")
	}
	return nil
}

// RedisAddr returns host:port, or "" when redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

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
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
