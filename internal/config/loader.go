package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig loads and validates configuration from, in increasing priority:
//  1. default values
//  2. the YAML file at path (optional)
//  3. BOT_* environment variables, e.g. BOT_TELEGRAM_TOKEN
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfiguration, path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	loc, err := time.LoadLocation(cfg.Winners.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid winners.timezone %q: %v", ErrConfiguration, cfg.Winners.Timezone, err)
	}
	cfg.Winners.Location = loc

	slog.Debug("Configuration loaded",
		"path", path,
		"model", cfg.Gemini.ModelName,
		"db_path", cfg.Database.Path,
		"community_chats", len(cfg.Telegram.CommunityChats))

	return cfg, nil
}
