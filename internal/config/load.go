package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	appLog "daycal/internal/log"
)

const EnvPrefix = "DAYCAL_"

// legacyEnv maps the environment of earlier single-container deployments
// onto config keys.
var legacyEnv = map[string]string{
	"ICLOUD_URL":      "source.url",
	"ICLOUD_USERNAME": "source.username",
	"ICLOUD_PASSWORD": "source.password",
	"CALENDARS":       "source.calendars",
	"CALENDAR_NAME":   "source.calendar_name",
	"TIMEZONE":        "timezone",
	"DAYS_TO_SHOW":    "days",
	"LATITUDE":        "latitude",
	"LONGITUDE":       "longitude",
	"LANGUAGE":        "language",
	"THEME":           "theme",
}

// Load layers configuration: defaults, the YAML file at path, legacy
// environment names, then DAYCAL_* variables. Nested keys use a double
// underscore: DAYCAL_SOURCE__PASSWORD sets source.password.
//
// If the file does not exist, a default one is written with 0600
// permissions so there is something to edit.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(*DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		created, err := ensureFile(path)
		switch {
		case err != nil:
			appLog.Warn("could not write default config", "path", path, "err", err)
		case created:
			appLog.Info("wrote default config", "path", path)
		}

		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
			appLog.Info("config file not found, using defaults and environment", "path", path)
		} else {
			appLog.Info("loaded configuration from file", "path", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, v string) (string, any) {
			if strings.TrimSpace(v) == "" {
				return "", nil
			}
			return legacyEnv[key], v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, v string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "__", "."), v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}
