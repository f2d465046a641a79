// File path: internal/store/config.go
package store

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads BACKOFFICE_DB_* environment overrides and applies
// defaults.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("BACKOFFICE_DB_PATH")); path != "" {
		cfg.Path = path
	}
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_DB_BUSY_TIMEOUT")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.BusyTimeout = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_DB_MAX_OPEN_CONNS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxOpenConns = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("BACKOFFICE_DB_MAX_IDLE_CONNS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxIdleConns = parsed
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = "data/backoffice.db"
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 4
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 15 * time.Minute
	}
}
