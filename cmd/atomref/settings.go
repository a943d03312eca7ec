package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"atomref"
	"atomref/internal/config"
	"atomref/internal/logging"
	"atomref/internal/ref"
)

func defaultSettingsPayload() ([]byte, error) {
	return fs.ReadFile(atomref.EmbeddedConfigFS, atomref.DefaultSettingsPath)
}

func lookupIn(environ []string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		for i := len(environ) - 1; i >= 0; i-- {
			name, value, ok := strings.Cut(environ[i], "=")
			if ok && name == key {
				return value, true
			}
		}
		return "", false
	}
}

// loadSettings layers the embedded defaults, the file at path, ATOMREF_*
// variables and flag overrides, then validates the result.
func loadSettings(path string, environ []string, flagOverrides map[string]any) (config.Settings, error) {
	defaults, err := defaultSettingsPayload()
	if err != nil {
		return config.Settings{}, fmt.Errorf("read default settings: %w", err)
	}
	overrides := config.EnvOverrides(environ)
	for key, value := range flagOverrides {
		overrides[key] = value
	}
	settings, err := config.LoadSettings(path, defaults, overrides)
	if err != nil {
		return config.Settings{}, err
	}
	if err := config.Validate(settings); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func newLogger(settings config.Settings, verbose bool, errOut io.Writer) *logging.Logger {
	level, ok := logging.ParseLevel(settings.Logging.Level)
	if !ok {
		level = logging.LevelInfo
	}
	if verbose {
		level = logging.LevelDebug
	}
	return logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, errOut)
}

// writeProblems prints one line per problem joined into err.
func writeProblems(out io.Writer, err error) {
	for _, problem := range problems(err) {
		fmt.Fprintf(out, "ERROR %v\n", problem)
	}
}

func problems(err error) []error {
	if err == nil {
		return nil
	}
	var invalid *ref.InvalidStateError
	if errors.As(err, &invalid) && invalid.Cause != nil {
		err = invalid.Cause
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
