package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"atomref/internal/config/tomlkeys"
	"atomref/internal/logging"
	"atomref/internal/predicate"
)

type Settings struct {
	Stress  StressSettings
	Logging LoggingSettings
	OTel    OTelSettings
}

type StressSettings struct {
	Name       string
	Workers    int64
	Increments int64
	Validator  string
}

type LoggingSettings struct {
	Level string
}

type OTelSettings struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// envKeys maps environment variables onto settings keys.
var envKeys = map[string]string{
	"ATOMREF_STRESS_NAME":       "stress.name",
	"ATOMREF_STRESS_WORKERS":    "stress.workers",
	"ATOMREF_STRESS_INCREMENTS": "stress.increments",
	"ATOMREF_STRESS_VALIDATOR":  "stress.validator",
	"ATOMREF_LOG_LEVEL":         "logging.level",
	"ATOMREF_OTEL_ENABLED":      "otel.enabled",
	"ATOMREF_OTEL_ENDPOINT":     "otel.endpoint",
	"ATOMREF_OTEL_SERVICE_NAME": "otel.service-name",
}

// LoadSettings layers defaults, the file at path (TOML, or YAML for .yaml
// and .yml), and overrides, in that order. A missing file is not an error.
func LoadSettings(path string, defaultsPayload []byte, overrides map[string]any) (Settings, error) {
	defaults, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Settings{}, fmt.Errorf("decode defaults: %w", err)
	}
	merged := defaults

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Settings{}, err
			}
		} else {
			file, err := tomlkeys.DecodeFile(path, payload)
			if err != nil {
				return Settings{}, fmt.Errorf("decode %s: %w", path, err)
			}
			merged = merged.Merge(file)
		}
	}
	merged = merged.Merge(tomlkeys.FromFlat(overrides))

	return Settings{
		Stress: StressSettings{
			Name:       textSetting(merged, defaults, "stress.name"),
			Workers:    intSetting(merged, "stress.workers"),
			Increments: intSetting(merged, "stress.increments"),
			Validator:  rawText(merged, "stress.validator"),
		},
		Logging: LoggingSettings{
			Level: textSetting(merged, defaults, "logging.level"),
		},
		OTel: OTelSettings{
			Enabled:     boolSetting(merged, defaults, "otel.enabled"),
			Endpoint:    textSetting(merged, defaults, "otel.endpoint"),
			ServiceName: textSetting(merged, defaults, "otel.service-name"),
		},
	}, nil
}

// EnvOverrides collects ATOMREF_* variables from environ as settings
// overrides. Numeric and boolean values are parsed; invalid ones stay
// strings and are rejected by Validate.
func EnvOverrides(environ []string) map[string]any {
	overrides := map[string]any{}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key, known := envKeys[name]
		if !known {
			continue
		}
		overrides[key] = parseEnvValue(key, value)
	}
	return overrides
}

// Validate reports every problem with settings at once.
func Validate(settings Settings) error {
	var problems []error
	if settings.Stress.Workers <= 0 {
		problems = append(problems, fmt.Errorf("stress.workers must be positive, got %d", settings.Stress.Workers))
	}
	if settings.Stress.Increments < 0 {
		problems = append(problems, fmt.Errorf("stress.increments must not be negative, got %d", settings.Stress.Increments))
	}
	if _, err := predicate.Compile[int64](settings.Stress.Validator); err != nil {
		problems = append(problems, fmt.Errorf("stress.validator: %w", err))
	}
	if _, ok := logging.ParseLevel(settings.Logging.Level); !ok {
		problems = append(problems, fmt.Errorf("logging.level %q is not a known level", settings.Logging.Level))
	}
	return errors.Join(problems...)
}

func parseEnvValue(key, value string) any {
	trimmed := strings.TrimSpace(value)
	switch key {
	case "stress.workers", "stress.increments":
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return parsed
		}
	case "otel.enabled":
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
	}
	return trimmed
}

// textSetting falls back to the default when the merged value is blank or
// not a string.
func textSetting(merged, defaults tomlkeys.Store, key string) string {
	if value, ok := merged.Text(key); ok && value != "" {
		return value
	}
	value, _ := defaults.Text(key)
	return value
}

func rawText(merged tomlkeys.Store, key string) string {
	value, _ := merged.Text(key)
	return value
}

// intSetting yields 0 for values that are not integers, which Validate
// then rejects.
func intSetting(merged tomlkeys.Store, key string) int64 {
	value, _ := merged.Int(key)
	return value
}

func boolSetting(merged, defaults tomlkeys.Store, key string) bool {
	if value, ok := merged.Bool(key); ok {
		return value
	}
	value, _ := defaults.Bool(key)
	return value
}
