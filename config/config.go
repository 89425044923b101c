package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Fog     FogConfig     `mapstructure:"fog"`
	Rolls   RollsConfig   `mapstructure:"rolls"`
	Logging LoggingConfig `mapstructure:"logging"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Sync    SyncConfig    `mapstructure:"sync"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite, postgres or memory
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type SessionConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

type FogConfig struct {
	GridSize int `mapstructure:"grid_size"`
}

type RollsConfig struct {
	MaxEntries  int `mapstructure:"max_entries"`
	RecentLimit int `mapstructure:"recent_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// AuthConfig decides who is the session host. HostKeyHash is a bcrypt hash
// of the key presented in the X-Host-Key header.
type AuthConfig struct {
	HostKeyHash string `mapstructure:"host_key_hash"`
	DevMode     bool   `mapstructure:"dev_mode"`
}

type SyncConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

const envPrefix = "TABLETOP"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":38870")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "tabletop.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("session.max_retries", 5)
	v.SetDefault("fog.grid_size", 128)
	v.SetDefault("rolls.max_entries", 100)
	v.SetDefault("rolls.recent_limit", 50)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("auth.host_key_hash", "")
	v.SetDefault("auth.dev_mode", false)
	v.SetDefault("sync.poll_interval", 2*time.Second)
}

// Load reads the configuration file at filePath. A missing file is created
// with the defaults, so the first start leaves an editable config behind.
// Environment variables prefixed with TABLETOP_ override file values.
func Load(filePath string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filePath)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(filePath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		if err := v.WriteConfigAs(filePath); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", filePath, err)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Fog.GridSize <= 0 {
		return fmt.Errorf("fog.grid_size must be positive, got %d", c.Fog.GridSize)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive, got %s", c.Sync.PollInterval)
	}
	return nil
}
