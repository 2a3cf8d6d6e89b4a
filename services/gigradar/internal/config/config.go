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
	DiscordBotToken  string
	DiscordChannelID string

	MarketplaceEmail    string
	MarketplacePassword string
	MarketplaceBaseURL  string
	CredentialsDir      string
	CaptchaAPIKey       string

	DatabaseDSN string

	LLMAPIKey         string
	LLMModel          string
	LLMBaseURL        string
	LLMFallbackModels []string

	ForumBaseURL        string
	ForumPages          int
	ForumPageDelay      time.Duration
	ForumDetailDelay    time.Duration
	ForumMaxRetries     int
	ForumRetryDelay     time.Duration
	ForumOnlyToday      bool
	ForumScrapeInterval time.Duration
	ForumFeedInterval   time.Duration

	MonitorInterval time.Duration
	MonitorKeywords []string
	MonitorGap      time.Duration

	HTTPMaxAttempts int
	HTTPBaseDelay   time.Duration
	HTTPImpersonate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	NATSURL         string
	NATSConnTimeout time.Duration

	ClickHouseDSN      string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	OTelCollectorURL string
	LogFormat        string
	EventWorkers     int
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	config := &Config{
		DiscordBotToken:  getEnvString("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnvString("DISCORD_CHANNEL_ID", ""),

		MarketplaceEmail:    getEnvString("MARKETPLACE_EMAIL", ""),
		MarketplacePassword: getEnvString("MARKETPLACE_PASSWORD", ""),
		MarketplaceBaseURL:  strings.TrimRight(getEnvString("MARKETPLACE_BASE_URL", "https://www.upwork.com"), "/"),
		CredentialsDir:      getEnvString("CREDENTIALS_DIR", "."),
		CaptchaAPIKey:       getEnvString("CAPTCHA_API_KEY", ""),

		DatabaseDSN: getEnvString("DATABASE_DSN", "sqlite://data/gigradar.db"),

		LLMAPIKey:         getEnvString("LLM_API_KEY", ""),
		LLMModel:          getEnvString("LLM_MODEL", "gemini-2.0-flash"),
		LLMBaseURL:        getEnvString("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		LLMFallbackModels: getEnvList("LLM_FALLBACK_MODELS", []string{"gemini-1.5-flash", "gemini-1.5-flash-latest", "gpt-4o-mini"}),

		ForumBaseURL:        strings.TrimRight(getEnvString("FORUM_BASE_URL", "https://www.blackhatworld.com/forums/hire-a-freelancer.76"), "/"),
		ForumPages:          getEnvInt("FORUM_PAGES", 1),
		ForumPageDelay:      getEnvSeconds("FORUM_PAGE_DELAY", 5*time.Second),
		ForumDetailDelay:    getEnvSeconds("FORUM_DETAIL_DELAY", 3*time.Second),
		ForumMaxRetries:     getEnvInt("FORUM_MAX_RETRIES", 2),
		ForumRetryDelay:     getEnvSeconds("FORUM_RETRY_DELAY", 5*time.Second),
		ForumOnlyToday:      getEnvBool("FORUM_ONLY_TODAY", true),
		ForumScrapeInterval: getEnvDuration("FORUM_SCRAPE_INTERVAL", 30*time.Minute),
		ForumFeedInterval:   getEnvDuration("FORUM_FEED_INTERVAL", 2*time.Minute),

		MonitorInterval: getEnvSeconds("MONITOR_INTERVAL", 0),
		MonitorKeywords: getEnvList("MONITOR_KEYWORDS", []string{"web scraping", "automation", "python", "discord bot"}),
		MonitorGap:      getEnvDuration("MONITOR_GAP", 2*time.Second),

		HTTPMaxAttempts: getEnvInt("HTTP_MAX_ATTEMPTS", 3),
		HTTPBaseDelay:   getEnvDuration("HTTP_BASE_DELAY", 2*time.Second),
		HTTPImpersonate: getEnvBool("HTTP_IMPERSONATE", true),

		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		NATSURL:         getEnvString("NATS_URL", ""),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),

		ClickHouseDSN:      getEnvString("CLICKHOUSE_DSN", ""),
		ClickHouseDatabase: getEnvString("CLICKHOUSE_DATABASE", "gigradar"),
		ClickHouseUsername: getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnvString("CLICKHOUSE_PASSWORD", ""),

		OTelCollectorURL: getEnvString("OTEL_COLLECTOR_URL", ""),
		LogFormat:        getEnvString("LOG_FORMAT", "json"),
		EventWorkers:     getEnvInt("EVENT_WORKERS", 8),
	}

	return config, nil
}

// Validate checks the settings the long-running bot cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.DiscordBotToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}
	if c.DiscordChannelID == "" {
		missing = append(missing, "DISCORD_CHANNEL_ID")
	} else if _, err := strconv.ParseUint(c.DiscordChannelID, 10, 64); err != nil {
		return fmt.Errorf("DISCORD_CHANNEL_ID must be numeric, got %q", c.DiscordChannelID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.ForumPages < 1 {
		return fmt.Errorf("FORUM_PAGES must be at least 1, got %d", c.ForumPages)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSeconds accepts plain seconds ("5", "2.5") as well as Go durations.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value = strings.TrimSpace(value)
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
