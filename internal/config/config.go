// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	FeedURLs         []string
	RefreshInterval  time.Duration
	FetchTimeout     time.Duration
	DeliveryTimeout  time.Duration
	FetchConcurrency int
	PageSize         int
	SendInterval     time.Duration
	NotifyBacklog    bool
}

// Load reads configuration from environment variables.
// It fails when a required value is missing or a value is out of range.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	feedURLs := splitList(os.Getenv("FEED_URLS"))
	if len(feedURLs) == 0 {
		return nil, fmt.Errorf("FEED_URLS is empty, provide at least one feed URL")
	}

	var allowedUsers []int64
	for _, s := range splitList(os.Getenv("ALLOWED_USERS")) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		allowedUsers = append(allowedUsers, uid)
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		AllowedUsers:     allowedUsers,
		FeedURLs:         feedURLs,
	}

	var err error
	if cfg.RefreshInterval, err = positiveDuration("REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = positiveDuration("FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = positiveDuration("DELIVERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = positiveInt("FETCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = positiveInt("PAGE_SIZE", 10); err != nil {
		return nil, err
	}

	cfg.SendInterval = 50 * time.Millisecond
	if raw := os.Getenv("SEND_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid SEND_INTERVAL %q: must be a non-negative duration", raw)
		}
		cfg.SendInterval = d
	}

	if raw := os.Getenv("NOTIFY_BACKLOG"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_BACKLOG %q: %w", raw, err)
		}
		cfg.NotifyBacklog = b
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}

func positiveInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	return n, nil
}
