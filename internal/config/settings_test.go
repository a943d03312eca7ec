package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atomref"
)

func readDefaults(t *testing.T) []byte {
	t.Helper()
	payload, err := fs.ReadFile(atomref.EmbeddedConfigFS, atomref.DefaultSettingsPath)
	if err != nil {
		t.Fatalf("read defaults: %v", err)
	}
	return payload
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestEmbeddedDefaultsAreValid(t *testing.T) {
	settings, err := LoadSettings("", readDefaults(t), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if err := Validate(settings); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	if settings.Stress.Workers != 10 || settings.Stress.Increments != 1 {
		t.Fatalf("unexpected stress defaults %+v", settings.Stress)
	}
	if settings.Stress.Name != "counter" || settings.Logging.Level != "info" {
		t.Fatalf("unexpected defaults %+v", settings)
	}
	if settings.OTel.Enabled || settings.OTel.ServiceName != "atomref" {
		t.Fatalf("unexpected otel defaults %+v", settings.OTel)
	}
}

func TestLoadSettingsOverridesWin(t *testing.T) {
	path := writeFile(t, t.TempDir(), "atomref.toml", "[stress]\nworkers = 3\n")
	overrides := map[string]any{"stress.WORKERS": int64(5)}

	settings, err := LoadSettings(path, readDefaults(t), overrides)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Stress.Workers != 5 {
		t.Fatalf("expected override to win, got %d", settings.Stress.Workers)
	}
}

func TestLoadSettingsFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "atomref.toml", `[stress]
workers = 4
validator = "value % 2 == 1"

[logging]
level = "debug"
`)
	settings, err := LoadSettings(path, readDefaults(t), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Stress.Workers != 4 || settings.Stress.Validator != "value % 2 == 1" {
		t.Fatalf("unexpected stress settings %+v", settings.Stress)
	}
	if settings.Stress.Increments != 1 {
		t.Fatalf("expected default increments, got %d", settings.Stress.Increments)
	}
	if settings.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", settings.Logging.Level)
	}
}

func TestLoadSettingsYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "atomref.yaml", `stress:
  workers: 7
  name: yaml-counter
otel:
  enabled: true
`)
	settings, err := LoadSettings(path, readDefaults(t), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Stress.Workers != 7 || settings.Stress.Name != "yaml-counter" {
		t.Fatalf("unexpected stress settings %+v", settings.Stress)
	}
	if !settings.OTel.Enabled {
		t.Fatal("expected otel enabled from yaml")
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"), readDefaults(t), nil)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Stress.Workers != 10 {
		t.Fatalf("expected default workers, got %d", settings.Stress.Workers)
	}
}

func TestLoadSettingsMalformedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "atomref.toml", "[stress\n")
	if _, err := LoadSettings(path, readDefaults(t), nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnvOverrides(t *testing.T) {
	overrides := EnvOverrides([]string{
		"ATOMREF_STRESS_WORKERS=12",
		"ATOMREF_OTEL_ENABLED=true",
		"ATOMREF_LOG_LEVEL= warn ",
		"ATOMREF_UNKNOWN=1",
		"PATH=/usr/bin",
		"malformed",
	})
	if overrides["stress.workers"] != int64(12) {
		t.Fatalf("expected parsed workers, got %#v", overrides["stress.workers"])
	}
	if overrides["otel.enabled"] != true {
		t.Fatalf("expected parsed bool, got %#v", overrides["otel.enabled"])
	}
	if overrides["logging.level"] != "warn" {
		t.Fatalf("expected trimmed level, got %#v", overrides["logging.level"])
	}
	if len(overrides) != 3 {
		t.Fatalf("expected 3 overrides, got %v", overrides)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Validate(Settings{
		Stress:  StressSettings{Workers: 0, Increments: -1, Validator: "value +"},
		Logging: LoggingSettings{Level: "loud"},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"stress.workers", "stress.increments", "stress.validator", "logging.level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 4 {
		t.Fatalf("expected 4 joined errors, got %v", err)
	}
}
