package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Server    ServerConfig
	Feed      FeedConfig
	Monitor   []MonitorTarget
	Retention RetentionConfig
	Storage   StorageConfig
	Mail      MailConfig
	Dispatch  DispatchConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type FeedConfig struct {
	URL          string
	PollInterval time.Duration
	Timeout      time.Duration
}

// MonitorTarget is one office and the cities watched under it.
type MonitorTarget struct {
	Office string
	Cities []string
}

type RetentionConfig struct {
	Grace           time.Duration
	Window          time.Duration
	CleanupSchedule string // cron spec
}

type StorageConfig struct {
	DBPath        string
	CacheDir      string
	QuarantineDir string
}

type MailConfig struct {
	APIKey     string
	Sender     string
	Recipients []string
}

// Enabled reports whether mail delivery is configured at all; without it
// transitions only go to the log.
func (m MailConfig) Enabled() bool {
	return m.APIKey != "" && m.Sender != "" && len(m.Recipients) > 0
}

type DispatchConfig struct {
	Count      int
	BufferSize int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	monitor, err := parseMonitorTargets(getEnv("MONITOR_TARGETS", "東京都=千代田区"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Feed: FeedConfig{
			URL:          getEnv("FEED_URL", "https://www.data.jma.go.jp/developer/xml/feed/extra.xml"),
			PollInterval: getEnvDuration("FEED_POLL_INTERVAL", 10*time.Minute),
			Timeout:      getEnvDuration("FEED_TIMEOUT", 15*time.Second),
		},
		Monitor: monitor,
		Retention: RetentionConfig{
			Grace:           time.Duration(getEnvInt("RETENTION_GRACE_DAYS", 30)) * 24 * time.Hour,
			Window:          time.Duration(getEnvInt("RETENTION_WINDOW_DAYS", 30)) * 24 * time.Hour,
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 1 * * *"),
		},
		Storage: StorageConfig{
			DBPath:        getEnv("DB_PATH", "./data/weather.sqlite3"),
			CacheDir:      getEnv("CACHE_DIR", "./data/xml"),
			QuarantineDir: getEnv("QUARANTINE_DIR", "./data/deleted"),
		},
		Mail: MailConfig{
			APIKey:     getEnv("MAIL_API_KEY", ""),
			Sender:     getEnv("MAIL_SENDER", ""),
			Recipients: splitList(getEnv("MAIL_RECIPIENTS", "")),
		},
		Dispatch: DispatchConfig{
			Count:      getEnvInt("DISPATCH_COUNT", 1),
			BufferSize: getEnvInt("DISPATCH_BUFFER_SIZE", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Feed.PollInterval < time.Minute {
		return fmt.Errorf("feed poll interval must be at least 1 minute")
	}
	if c.Retention.Grace <= 0 || c.Retention.Window <= 0 {
		return fmt.Errorf("retention periods must be positive")
	}
	if _, err := cron.ParseStandard(c.Retention.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.Retention.CleanupSchedule, err)
	}
	if len(c.Monitor) == 0 {
		return fmt.Errorf("at least one monitor target is required")
	}

	return nil
}

// parseMonitorTargets parses "office=city,city;office=city" into targets.
func parseMonitorTargets(s string) ([]MonitorTarget, error) {
	var targets []MonitorTarget
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		office, cityList, ok := strings.Cut(part, "=")
		office = strings.TrimSpace(office)
		if !ok || office == "" {
			return nil, fmt.Errorf("invalid monitor target %q, want office=city,city", part)
		}
		cities := splitList(cityList)
		if len(cities) == 0 {
			return nil, fmt.Errorf("monitor target %q has no cities", part)
		}
		targets = append(targets, MonitorTarget{Office: office, Cities: cities})
	}
	return targets, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
