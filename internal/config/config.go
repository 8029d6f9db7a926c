package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordAppID          string   `env:"DISCORD_APP_ID"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	Locale string `env:"LOCALE" envDefault:"ja"`

	StorageBackend     string `env:"STORAGE_BACKEND" envDefault:"json"`
	StoragePath        string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	StorageBackupCount int    `env:"STORAGE_BACKUP_COUNT" envDefault:"3"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	GatewayRate    float64       `env:"GATEWAY_RATE" envDefault:"5"`

	VacUserLimit         int           `env:"VAC_USER_LIMIT" envDefault:"99"`
	VacRoomName          string        `env:"VAC_ROOM_NAME" envDefault:"%s's Room"`
	VacReconcileInterval time.Duration `env:"VAC_RECONCILE_INTERVAL" envDefault:"15m"`
	VacReconcileWorkers  int           `env:"VAC_RECONCILE_WORKERS" envDefault:"4"`
}

// New loads .env (if present) and parses the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseStorage reads only the storage settings, for tools that never talk
// to Discord.
func ParseStorage() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg struct {
		StorageBackend string `env:"STORAGE_BACKEND" envDefault:"json"`
		StoragePath    string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	out := &Config{
		StorageBackend:     strings.ToLower(cfg.StorageBackend),
		StoragePath:        cfg.StoragePath,
		StorageBackupCount: 3,
	}
	if err := out.validateStorage(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	c.StorageBackend = strings.ToLower(c.StorageBackend)
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.GatewayTimeout)
	}
	if c.GatewayRate <= 0 {
		return fmt.Errorf("GATEWAY_RATE must be positive, got %v", c.GatewayRate)
	}
	if c.VacUserLimit < 1 || c.VacUserLimit > 99 {
		return fmt.Errorf("VAC_USER_LIMIT must be between 1 and 99, got %d", c.VacUserLimit)
	}
	if strings.Count(c.VacRoomName, "%s") != 1 {
		return fmt.Errorf("VAC_ROOM_NAME must contain exactly one %%s, got %q", c.VacRoomName)
	}
	if c.VacReconcileInterval < 0 {
		return fmt.Errorf("VAC_RECONCILE_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendJSON, BackendSQLite, c.StorageBackend)
	}
	if strings.TrimSpace(c.StoragePath) == "" {
		return fmt.Errorf("STORAGE_PATH must not be empty")
	}
	return nil
}
