// Package cli holds the flag wiring shared by atomref subcommands.
package cli

import (
	"flag"
	"os"
	"strings"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
	defaultConfigDesc  = "Settings file, TOML or YAML (env: ATOMREF_CONFIG)"

	// ConfigEnv names the variable consulted when -config is not given.
	ConfigEnv = "ATOMREF_CONFIG"
)

type CommonFlags struct {
	Help    bool
	Version bool
	Verbose bool
	Config  string
}

// AddCommonFlags registers -h/-help, -v/-version, -verbose and -config on fs.
func AddCommonFlags(fs *flag.FlagSet, defaultConfig string) *CommonFlags {
	flags := &CommonFlags{}
	if fs == nil {
		return flags
	}
	fs.BoolVar(&flags.Help, "help", false, defaultHelpDesc)
	fs.BoolVar(&flags.Help, "h", false, defaultHelpDesc)
	fs.BoolVar(&flags.Version, "version", false, defaultVersionDesc)
	fs.BoolVar(&flags.Version, "v", false, defaultVersionDesc)
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable debug logging")
	fs.StringVar(&flags.Config, "config", defaultConfig, defaultConfigDesc)
	return flags
}

// ConfigPath returns the -config value, falling back to ATOMREF_CONFIG
// when the flag was left at its default.
func (f *CommonFlags) ConfigPath(fs *flag.FlagSet, lookup func(string) (string, bool)) string {
	if f == nil {
		return ""
	}
	if fs != nil && FlagProvided(fs, "config") {
		return strings.TrimSpace(f.Config)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(ConfigEnv); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(f.Config)
}

// FlagProvided reports whether name was set explicitly on the command line.
func FlagProvided(fs *flag.FlagSet, name string) bool {
	provided := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}
