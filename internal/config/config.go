// Package config loads the designer configuration from a file, environment
// variables (prefix DESIGNER_) and built-in defaults, in that order of precedence
// from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go-page-designer/internal/security"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full designer configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
	Designer  DesignerConfig  `mapstructure:"designer"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=json sqlite"`
	Path   string `mapstructure:"path" validate:"required"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type ClipboardConfig struct {
	SingleStorage bool          `mapstructure:"single_storage"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type DesignerConfig struct {
	// Enabled is the feature flag for every design-time command.
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// SecurityConfig is the static user directory of the reference server.
type SecurityConfig struct {
	Users []UserConfig `mapstructure:"users" validate:"dive"`
}

// UserConfig describes one known user and the permissions granted to it.
type UserConfig struct {
	ID          int      `mapstructure:"id" validate:"gt=0"`
	UserName    string   `mapstructure:"username" validate:"required"`
	Privilege   string   `mapstructure:"privilege" validate:"omitempty,oneof=none editor admin globaladmin global_admin"`
	Permissions []string `mapstructure:"permissions"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.path", "data")
	v.SetDefault("catalog.path", "catalog.yaml")
	v.SetDefault("clipboard.single_storage", false)
	v.SetDefault("clipboard.ttl", "24h")
	v.SetDefault("designer.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. An empty path looks for designer.{yaml,json,toml}
// in the working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DESIGNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s failed: %w", path, err)
		}
	} else {
		v.SetConfigName("designer")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config failed: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the application logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Authorizer builds a StaticAuthorizer from the configured permissions.
func (c SecurityConfig) Authorizer() *security.StaticAuthorizer {
	grants := make(map[int][]string, len(c.Users))
	for _, u := range c.Users {
		grants[u.ID] = append(grants[u.ID], u.Permissions...)
	}
	return security.NewStaticAuthorizer(grants)
}

// Lookup returns the configured user with the given user name.
func (c SecurityConfig) Lookup(userName string) (security.User, bool) {
	for _, u := range c.Users {
		if strings.EqualFold(u.UserName, userName) {
			return security.User{
				ID:            u.ID,
				UserName:      u.UserName,
				Authenticated: true,
				Privilege:     security.ParsePrivilegeLevel(u.Privilege),
			}, true
		}
	}
	return security.User{}, false
}
