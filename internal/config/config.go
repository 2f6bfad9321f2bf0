package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	ProfileExtended      = "extended"
	ProfileNationalities = "nationalities"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Analyzer  AnalyzerConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Axiom     AxiomConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// RedisConfig is optional; an empty Addr keeps rate limiting in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	MaxTokens       int
	EntityMaxTokens int
	Timeout         time.Duration
	MaxRetries      int
	Parallel        bool
}

type AnalyzerConfig struct {
	Profile          string
	AllowedFileTypes []string
	MaxFileSize      int64
	MinTextLength    int
	MaxTextLength    int
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
}

type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// DefaultFileTypes returns the upload extensions accepted by a profile.
func DefaultFileTypes(profile string) []string {
	if profile == ProfileNationalities {
		return []string{".txt", ".md", ".rtf"}
	}
	return []string{".txt", ".docx"}
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-1.5-flash"
	}
	return "gpt-3.5-turbo"
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI))
	profile := strings.ToLower(getEnv("ANALYZER_PROFILE", ProfileExtended))

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("HOST", "0.0.0.0"),
			Port:           getEnv("PORT", "8000"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:    getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 90*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			Provider:        provider,
			APIKey:          apiKeyFor(provider),
			Model:           getEnv("LLM_MODEL", getEnv("OPENAI_MODEL", defaultModel(provider))),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			MaxTokens:       getEnvAsInt("MAX_TOKENS", 1500),
			EntityMaxTokens: getEnvAsInt("ENTITY_MAX_TOKENS", 500),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:      getEnvAsInt("LLM_MAX_RETRIES", 0),
			Parallel:        getEnvAsBool("LLM_PARALLEL", false),
		},
		Analyzer: AnalyzerConfig{
			Profile:          profile,
			AllowedFileTypes: getEnvAsExtensions("ALLOWED_FILE_TYPES", DefaultFileTypes(profile)),
			MaxFileSize:      int64(getEnvAsInt("MAX_FILE_SIZE", 10*1024*1024)),
			MinTextLength:    getEnvAsInt("MIN_TEXT_LENGTH", 50),
			MaxTextLength:    getEnvAsInt("MAX_TEXT_LENGTH", 50000),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Pretty:     getEnvAsBool("LOG_PRETTY", isDevEnv()),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 10),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Axiom: AxiomConfig{
			Send:          getEnvAsBool("SEND_LOGS_TO_AXIOM", false),
			APIKey:        getEnv("AXIOM_API_KEY", ""),
			OrgID:         getEnv("AXIOM_ORG_ID", ""),
			Dataset:       getEnv("AXIOM_DATASET", "dev") + "_article_analyzer",
			FlushInterval: getEnvAsDuration("AXIOM_FLUSH_INTERVAL", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the analysis pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	switch c.Analyzer.Profile {
	case ProfileExtended, ProfileNationalities:
	default:
		return fmt.Errorf("unsupported ANALYZER_PROFILE %q", c.Analyzer.Profile)
	}
	if c.LLM.MaxTokens <= 0 || c.LLM.EntityMaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS and ENTITY_MAX_TOKENS must be positive")
	}
	if c.Analyzer.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Analyzer.MinTextLength < 0 || c.Analyzer.MaxTextLength < c.Analyzer.MinTextLength {
		return fmt.Errorf("invalid text length bounds [%d, %d]", c.Analyzer.MinTextLength, c.Analyzer.MaxTextLength)
	}
	if len(c.Analyzer.AllowedFileTypes) == 0 {
		return fmt.Errorf("ALLOWED_FILE_TYPES must list at least one extension")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.BurstSize <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPM and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func apiKeyFor(provider string) string {
	if provider == ProviderGemini {
		return getEnv("GEMINI_API_KEY", "")
	}
	return getEnv("OPENAI_API_KEY", "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsExtensions parses a comma separated list like "txt, .md" into [".txt", ".md"].
func getEnvAsExtensions(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var exts []string
	for _, part := range strings.Split(value, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return defaultValue
	}
	return exts
}

func isDevEnv() bool {
	env := strings.ToLower(os.Getenv("ENV"))
	return env == "dev" || env == "development" || env == "local"
}
