// Package config loads the service configuration from config.yml, a .env
// file and VMFA_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. VMFA_DATABASE_PATH overrides database.path.
const EnvPrefix = "VMFA"

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Plugins struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"plugins"`
	Host struct {
		Version   string `mapstructure:"version"`
		Multisite bool   `mapstructure:"multisite"`
	} `mapstructure:"host"`
	Addons struct {
		Namespace       string        `mapstructure:"namespace"`
		APIBase         string        `mapstructure:"api_base"`
		CacheTTL        time.Duration `mapstructure:"cache_ttl"`
		FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
		InstallTimeout  time.Duration `mapstructure:"install_timeout"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
		PurgeInterval   time.Duration `mapstructure:"purge_interval"`
		WatchDebounce   time.Duration `mapstructure:"watch_debounce"`
	} `mapstructure:"addons"`
	Auth struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"auth"`
	Admin struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"admin"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// Load reads configuration from the current directory.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom reads dir/.env (if present) into the process environment, then
// dir/config.yml, then VMFA_ environment overrides on top of the defaults.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database.path", "./vmfa.db")
	v.SetDefault("plugins.path", "./plugins")
	v.SetDefault("host.version", "6.9.1")
	v.SetDefault("host.multisite", false)
	v.SetDefault("addons.namespace", "vmfa")
	v.SetDefault("addons.api_base", "https://api.github.com")
	v.SetDefault("addons.cache_ttl", 6*time.Hour)
	v.SetDefault("addons.fetch_timeout", 10*time.Second)
	v.SetDefault("addons.install_timeout", 5*time.Minute)
	v.SetDefault("addons.refresh_interval", 6*time.Hour)
	v.SetDefault("addons.purge_interval", time.Hour)
	v.SetDefault("addons.watch_debounce", 500*time.Millisecond)
	v.SetDefault("auth.secret", "")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Plugins.Path == "" {
		return errors.New("plugins.path must not be empty")
	}
	if c.Addons.Namespace == "" {
		return errors.New("addons.namespace must not be empty")
	}
	if c.Addons.RefreshInterval <= 0 || c.Addons.PurgeInterval <= 0 {
		return errors.New("addons.refresh_interval and addons.purge_interval must be positive")
	}
	return nil
}
