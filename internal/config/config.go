// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAdminPassword is the fallback admin secret used when ADMIN_PASSWORD
// is unset. Kept for compatibility with existing deployments; main logs a
// warning whenever it is in effect.
const DefaultAdminPassword = "admin123"

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// AdminPassword is the shared secret behind the "auth admin" command.
	AdminPassword string
	// AdminPasswordDefaulted is true when ADMIN_PASSWORD was not set.
	AdminPasswordDefaulted bool
	// AdminSessionTTL is how long an admin session stays valid without use.
	AdminSessionTTL time.Duration

	GoogleAPIKey string
	GeminiModel  string

	// UploadMaxBytes caps the decoded size of a chat attachment.
	UploadMaxBytes int64
	// MaxRequestBodySize caps the HTTP request body (base64 overhead included).
	MaxRequestBodySize int64
	// ConversationTTL is how long an idle conversation is kept in memory.
	ConversationTTL time.Duration

	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// RateLimitConfig controls per-user chat request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	adminDefaulted := adminPassword == ""
	if adminDefaulted {
		adminPassword = DefaultAdminPassword
	}

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		FrontendURL:            getEnv("FRONTEND_URL", ""),
		DBPath:                 getEnv("DB_PATH", "./data/labchat.db"),
		AdminPassword:          adminPassword,
		AdminPasswordDefaulted: adminDefaulted,
		AdminSessionTTL:        time.Duration(getEnvInt("ADMIN_SESSION_SECONDS", 300)) * time.Second,
		GoogleAPIKey:           getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		UploadMaxBytes:         int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		MaxRequestBodySize:     int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 16<<20)),
		ConversationTTL:        time.Duration(getEnvInt("CONVERSATION_TTL_MINUTES", 60)) * time.Minute,
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD cannot be empty")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_SECONDS must be > 0")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.MaxRequestBodySize < c.UploadMaxBytes {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be >= UPLOAD_MAX_BYTES")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
