package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"careerprep/internal/domain"
)

var defaultAllowedOrigins = []string{
	"http://localhost:5173", // SvelteKit dev server
	"http://localhost:4173", // SvelteKit preview
	"http://localhost:3000", // Alternative dev port
}

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string
	LogLevel          string
	SupabaseURL       string
	SupabaseKey       string
	LocalStatePath    string
	ChallengeDuration int
	TickInterval      time.Duration
	NetworkTimeout    time.Duration
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	EventPollInterval time.Duration
	AllowedOrigins    []string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:  getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL: getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey: getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		// Set but empty keeps local state in memory.
		LocalStatePath:    getEnvAllowEmpty("LOCAL_STATE_PATH", "./data/local_state.db"),
		ChallengeDuration: getEnvIntOrDefault("CHALLENGE_DURATION_SECONDS", 600),
		TickInterval:      getEnvMillisOrDefault("TICK_INTERVAL_MS", time.Second),
		NetworkTimeout:    getEnvMillisOrDefault("NETWORK_TIMEOUT_MS", 10*time.Second),
		RetryMaxAttempts:  getEnvIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:    getEnvMillisOrDefault("RETRY_BASE_DELAY_MS", 500*time.Millisecond),
		EventPollInterval: getEnvMillisOrDefault("EVENT_POLL_INTERVAL_MS", 5*time.Second),
		AllowedOrigins:    getEnvListOrDefault("ALLOWED_ORIGINS", defaultAllowedOrigins),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetLocalStatePath returns the sqlite file for local state; empty keeps it in memory.
func (c *AppConfig) GetLocalStatePath() string {
	return c.LocalStatePath
}

// GetChallengeDuration returns the answer window in seconds
func (c *AppConfig) GetChallengeDuration() int {
	return c.ChallengeDuration
}

func (c *AppConfig) GetTickInterval() time.Duration {
	return c.TickInterval
}

func (c *AppConfig) GetNetworkTimeout() time.Duration {
	return c.NetworkTimeout
}

func (c *AppConfig) GetRetryMaxAttempts() int {
	return c.RetryMaxAttempts
}

func (c *AppConfig) GetRetryBaseDelay() time.Duration {
	return c.RetryBaseDelay
}

func (c *AppConfig) GetEventPollInterval() time.Duration {
	return c.EventPollInterval
}

// GetAllowedOrigins returns the CORS origins
func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvMillisOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
