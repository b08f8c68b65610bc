package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/xorcism-go/internal/config.Version=..."
var Version = "dev"

// ServerConfig represents HTTP listener configuration
type ServerConfig struct {
	Address         string `json:"address" mapstructure:"address"`
	Port            int    `json:"port" mapstructure:"port"`
	EnableH2C       bool   `json:"enable_h2c" mapstructure:"enable_h2c"`
	EnableCORS      bool   `json:"enable_cors" mapstructure:"enable_cors"`
	ShutdownTimeout int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // console, json
}

// MungerConfig represents defaults for munge operations
type MungerConfig struct {
	StageSize     int    `json:"stage_size" mapstructure:"stage_size"`
	MaxChunkSize  int64  `json:"max_chunk_size" mapstructure:"max_chunk_size"` // bytes, session chunks are buffered
	DefaultCodec  string `json:"default_codec" mapstructure:"default_codec"`   // none, zstd, lz4
	DefaultSource string `json:"default_source" mapstructure:"default_source"` // raw, hex, base64, passphrase
}

// AuthConfig represents API authentication configuration
type AuthConfig struct {
	Enable    bool   `json:"enable" mapstructure:"enable"`
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret"`
	JWTExpire int    `json:"jwt_expire" mapstructure:"jwt_expire"` // hours
}

// CacheConfig represents key cache configuration
type CacheConfig struct {
	Enable     bool `json:"enable" mapstructure:"enable"`
	Expiration int  `json:"expiration" mapstructure:"expiration"` // minutes
	MaxSize    int  `json:"max_size" mapstructure:"max_size"`
}

// Config represents the main configuration
type Config struct {
	Server  ServerConfig `json:"server" mapstructure:"server"`
	Log     LogConfig    `json:"log" mapstructure:"log"`
	Munger  MungerConfig `json:"munger" mapstructure:"munger"`
	Auth    AuthConfig   `json:"auth" mapstructure:"auth"`
	Cache   CacheConfig  `json:"cache" mapstructure:"cache"`
	DataDir string       `json:"data_dir" mapstructure:"data_dir"`

	// Keys are seeded into the key store at startup.
	Keys []KeySpec `json:"keys" mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 5380)
	v.SetDefault("server.enable_h2c", false)
	v.SetDefault("server.enable_cors", false)
	v.SetDefault("server.shutdown_timeout", 30)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Munger defaults
	v.SetDefault("munger.stage_size", 1024)
	v.SetDefault("munger.max_chunk_size", 64<<20)
	v.SetDefault("munger.default_codec", "none")
	v.SetDefault("munger.default_source", "raw")

	// Auth defaults
	v.SetDefault("auth.enable", false)
	v.SetDefault("auth.jwt_secret", "xorcism-secret-change-me")
	v.SetDefault("auth.jwt_expire", 24)

	// Cache defaults
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.expiration", 10)
	v.SetDefault("cache.max_size", 1000)

	v.SetDefault("data_dir", "./data")
}

// Load reads configuration from path, or from config.json in the usual
// places when path is empty. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.xorcism")
	}

	// Environment variables
	v.SetEnvPrefix("XORCISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Msg("Config file not found, using defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Keys = ParseKeyList(v.Get("keys"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in confusing ways
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Munger.StageSize <= 0 {
		return fmt.Errorf("invalid munger.stage_size: %d", c.Munger.StageSize)
	}
	if c.Munger.MaxChunkSize <= 0 {
		return fmt.Errorf("invalid munger.max_chunk_size: %d", c.Munger.MaxChunkSize)
	}
	if c.Auth.Enable && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

// GetHTTPAddr returns the HTTP listen address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
