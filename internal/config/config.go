// Package config loads legacyfix settings from legacyfix.yaml, LEGACYFIX_*
// environment variables and built-in defaults, in increasing order of
// precedence below command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
)

const (
	configFileName = "legacyfix"
	configFileType = "yaml"
	envPrefix      = "LEGACYFIX"
)

// Config keys.
const (
	KeyTargetVersion  = "target_version"
	KeyLegacyCutoff   = "legacy_cutoff"
	KeyMaxDepth       = "max_depth"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeyJournalPath    = "journal.path"
	KeyCacheEntries   = "cache.max_entries"
	KeyServerPort     = "server.port"
	KeyAllowedOrigins = "server.allowed_origins"
	KeyBatchWorkers   = "batch.workers"
)

// Config holds every setting.
type Config struct {
	TargetVersion int           `mapstructure:"target_version"`
	LegacyCutoff  int           `mapstructure:"legacy_cutoff"`
	MaxDepth      int           `mapstructure:"max_depth"`
	Log           LogConfig     `mapstructure:"log"`
	Journal       JournalConfig `mapstructure:"journal"`
	Cache         CacheConfig   `mapstructure:"cache"`
	Server        ServerConfig  `mapstructure:"server"`
	Batch         BatchConfig   `mapstructure:"batch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty disables journaling.
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// DefaultDir returns the directory searched for legacyfix.yaml when no file
// is named explicitly.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "legacyfix")
	}
	return "."
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyTargetVersion, fixer.DefaultTargetVersion)
	v.SetDefault(KeyLegacyCutoff, fixer.LegacyCutoff)
	v.SetDefault(KeyMaxDepth, fixer.DefaultMaxDepth)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyJournalPath, "")
	v.SetDefault(KeyCacheEntries, 1024)
	v.SetDefault(KeyServerPort, 8080)
	v.SetDefault(KeyAllowedOrigins, []string{})
	v.SetDefault(KeyBatchWorkers, 4)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A non-empty path names the file to read and
// must exist; otherwise legacyfix.yaml is looked up in DefaultDir and the
// working directory, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrapf(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults and the environment
// alone.
func Default() *Config {
	var cfg Config
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.TargetVersion <= 0:
		return errors.NewValidation(KeyTargetVersion, "must be positive")
	case c.LegacyCutoff <= 0:
		return errors.NewValidation(KeyLegacyCutoff, "must be positive")
	case c.LegacyCutoff > c.TargetVersion:
		return errors.NewValidation(KeyLegacyCutoff, "must not exceed target_version")
	case c.MaxDepth <= 0:
		return errors.NewValidation(KeyMaxDepth, "must be positive")
	case c.Cache.MaxEntries < 0:
		return errors.NewValidation(KeyCacheEntries, "must not be negative")
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return errors.NewValidation(KeyServerPort, "out of range")
	case c.Batch.Workers <= 0:
		return errors.NewValidation(KeyBatchWorkers, "must be positive")
	}
	return nil
}

// EngineConfig returns the engine settings carried by c.
func (c *Config) EngineConfig() fixer.Config {
	return fixer.Config{
		TargetVersion: c.TargetVersion,
		LegacyCutoff:  c.LegacyCutoff,
		MaxDepth:      c.MaxDepth,
	}
}
