package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/OpenGG/hostspilot/internal/hosts/backup"
	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

// EnvPrefix prefixes every environment override, e.g. HOSTSPILOT_MAX_BACKUPS.
const EnvPrefix = "HOSTSPILOT"

const (
	keyMaxBackups = "max_backups"
	keyFlushDNS   = "flush_dns"
	keyLogLevel   = "log_level"
)

// Config holds user settings. The live file location is deliberately absent:
// it is fixed per platform.
type Config struct {
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	FlushDNS   bool   `mapstructure:"flush_dns" json:"flush_dns" yaml:"flush_dns"`
	LogLevel   string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxBackups: backup.DefaultMaxBackups,
		FlushDNS:   true,
		LogLevel:   "info",
	}
}

// Load reads path through fs when it exists, then applies HOSTSPILOT_*
// environment overrides on top of the defaults.
func Load(fs afero.Fs, path string) (Config, error) {
	v := viper.New()
	v.SetFs(fs)

	def := Default()
	v.SetDefault(keyMaxBackups, def.MaxBackups)
	v.SetDefault(keyFlushDNS, def.FlushDNS)
	v.SetDefault(keyLogLevel, def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return Config{}, domain.IO(err, "failed to check config file %s", path)
		}
		if exists {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, domain.Wrap(domain.ErrParse, err, "failed to read config file %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, domain.Wrap(domain.ErrParse, err, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxBackups < 1 {
		return domain.Errorf(domain.ErrValidation, "max_backups must be at least 1, got %d", c.MaxBackups)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, domain.Wrap(domain.ErrValidation, err, "invalid log_level %q", c.LogLevel)
	}
	return level, nil
}
