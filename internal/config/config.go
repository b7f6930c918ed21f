// Package config loads settings from defaults, an optional seopulse.yaml,
// SEOPULSE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stecom/seopulse/internal/store"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Sampler SamplerConfig `mapstructure:"sampler"`
	Site    SiteConfig    `mapstructure:"site"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Token guards the dashboard. Empty means one is generated at startup.
	Token string `mapstructure:"token"`
}

type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

type SamplerConfig struct {
	Kind    string        `mapstructure:"kind"` // random or http
	Timeout time.Duration `mapstructure:"timeout"`
	Seed    uint64        `mapstructure:"seed"`
}

type SiteConfig struct {
	BaseURL    string   `mapstructure:"base_url"`
	DefaultURL string   `mapstructure:"default_url"`
	Keywords   []string `mapstructure:"keywords"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"port":       "server.port",
	"token":      "server.token",
	"store":      "store.driver",
	"db":         "store.sqlite_path",
	"redis-addr": "store.redis_addr",
	"sampler":    "sampler.kind",
	"seed":       "sampler.seed",
	"base-url":   "site.base_url",
	"log-level":  "log.level",
	"log-format": "log.format",
	"url":        "site.default_url",
	"keywords":   "site.keywords",
}

// Load reads configuration. flags may be nil. A "config" flag, when set,
// names the file to read instead of searching for seopulse.yaml.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("seopulse")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/seopulse")
	v.AddConfigPath("/etc/seopulse")

	v.SetEnvPrefix("SEOPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.token", "")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.sqlite_path", "./seopulse.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "seopulse:")

	v.SetDefault("sampler.kind", "random")
	v.SetDefault("sampler.timeout", 10*time.Second)
	v.SetDefault("sampler.seed", 0)

	v.SetDefault("site.base_url", "https://example.com")
	v.SetDefault("site.default_url", "https://example.com")
	v.SetDefault("site.keywords", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver %q (memory, sqlite or redis)", c.Store.Driver)
	}
	switch c.Sampler.Kind {
	case "random", "http":
	default:
		return fmt.Errorf("unknown sampler %q (random or http)", c.Sampler.Kind)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:        c.Store.Driver,
		SQLitePath:    c.Store.SQLitePath,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		RedisPrefix:   c.Store.RedisPrefix,
	}
}
