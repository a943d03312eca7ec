package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"atomref/internal/cli"
	"atomref/internal/config"
	"atomref/internal/event"
)

func runValidateConfig(args []string, env runEnv) int {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	return runValidateConfigWithSignals(args, env, signals)
}

func runValidateConfigWithSignals(args []string, env runEnv, signals <-chan os.Signal) int {
	fs := flag.NewFlagSet("atomref validate-config", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	common := cli.AddCommonFlags(fs, "")
	follow := fs.Bool("watch", false, "Keep running and re-validate whenever the file changes")
	debounce := fs.Duration("debounce", 0, "Quiet period before a change is re-validated")
	history := fs.Int("history", defaultReloadHistory, "Reload outcomes listed when watching stops")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: atomref validate-config -config <path> [options]")
		fmt.Fprintln(fs.Output(), "")
		fmt.Fprintln(fs.Output(), "Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.Help {
		fs.Usage()
		return 0
	}
	if common.Version {
		return runVersion(env.Stdout)
	}

	path := common.ConfigPath(fs, lookupIn(env.Environ))
	if path == "" && fs.NArg() == 1 {
		path = strings.TrimSpace(fs.Arg(0))
	}
	if path == "" {
		fmt.Fprintln(env.Stderr, "config path is required")
		fs.Usage()
		return 2
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(env.Stdout, "ERROR %s: %v\n", path, err)
		return 1
	}

	settings, err := loadSettings(path, env.Environ, nil)
	if err != nil {
		fmt.Fprintf(env.Stdout, "INVALID %s\n", path)
		writeProblems(env.Stdout, err)
		return 1
	}
	fmt.Fprintf(env.Stdout, "OK %s\n", path)
	writeSettings(env.Stdout, settings)
	if !*follow {
		return 0
	}
	return followConfig(path, env, followOptions{
		Debounce: *debounce,
		History:  *history,
		Verbose:  common.Verbose,
	}, signals)
}

const defaultReloadHistory = 5

type followOptions struct {
	Debounce time.Duration
	History  int
	Verbose  bool
}

// followConfig holds the settings in a live reference and reports every
// accepted or rejected reload until a signal arrives. On the way out it
// lists the most recent outcomes kept by the bus.
func followConfig(path string, env runEnv, opts followOptions, signals <-chan os.Signal) int {
	defaults, err := defaultSettingsPayload()
	if err != nil {
		fmt.Fprintf(env.Stderr, "read default settings: %v\n", err)
		return 1
	}
	initial, err := loadSettings(path, env.Environ, nil)
	if err != nil {
		writeProblems(env.Stdout, err)
		return 1
	}
	logger := newLogger(initial, opts.Verbose, env.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := event.NewBus[event.ConfigEvent](ctx, event.BusOptions{
		Name:        "config_validate",
		HistorySize: opts.History,
		Logger:      logger,
	})
	outcomes, unsubscribe := bus.SubscribeTypes(event.TypeConfigReloaded, event.TypeConfigRejected)
	defer unsubscribe()

	live, err := config.NewLive(path, defaults, config.LiveOptions{
		Overrides: config.EnvOverrides(env.Environ),
		Logger:    logger,
		Bus:       bus,
		Debounce:  opts.Debounce,
	})
	if err != nil {
		writeProblems(env.Stdout, err)
		return 1
	}
	defer live.Close()

	if err := live.Watch(); err != nil {
		fmt.Fprintf(env.Stderr, "watch %s: %v\n", path, err)
		return 1
	}
	stopSignals := watchShutdownSignals(logger, cancel, signals)
	defer stopSignals()
	fmt.Fprintf(env.Stdout, "watching %s\n", path)

	for {
		select {
		case <-ctx.Done():
			writeRecentOutcomes(env.Stdout, bus, opts.History)
			return 0
		case outcome, ok := <-outcomes:
			if !ok {
				writeRecentOutcomes(env.Stdout, bus, opts.History)
				return 0
			}
			if outcome.Type() == event.TypeConfigReloaded {
				fmt.Fprintf(env.Stdout, "OK %s reloaded\n", path)
				writeSettings(env.Stdout, live.Settings())
				continue
			}
			fmt.Fprintf(env.Stdout, "INVALID %s, keeping previous settings\n", path)
			for _, line := range strings.Split(outcome.Message, "\n") {
				if strings.TrimSpace(line) != "" {
					fmt.Fprintf(env.Stdout, "ERROR %s\n", strings.TrimSpace(line))
				}
			}
		}
	}
}

// writeRecentOutcomes replays up to count of the bus's retained reload
// outcomes, oldest first.
func writeRecentOutcomes(out io.Writer, bus *event.Bus[event.ConfigEvent], count int) {
	if count <= 0 {
		return
	}
	recent := make(chan event.ConfigEvent, count)
	bus.ReplayLast(count, recent)
	close(recent)
	if len(recent) == 0 {
		fmt.Fprintln(out, "no reloads observed")
		return
	}
	fmt.Fprintf(out, "last %d reload outcomes:\n", len(recent))
	for outcome := range recent {
		status := "OK"
		if outcome.Type() == event.TypeConfigRejected {
			status = "INVALID"
		}
		summary, _, _ := strings.Cut(outcome.Message, "\n")
		fmt.Fprintf(out, "  %s %s %s\n", outcome.OccurredAt.Format(time.RFC3339), status, strings.TrimSpace(summary))
	}
}

func writeSettings(out io.Writer, settings config.Settings) {
	validator := settings.Stress.Validator
	if validator == "" {
		validator = "<none>"
	}
	fmt.Fprintf(out, "  stress: name=%s workers=%d increments=%d validator=%s\n",
		settings.Stress.Name, settings.Stress.Workers, settings.Stress.Increments, validator)
	fmt.Fprintf(out, "  logging: level=%s\n", settings.Logging.Level)
	fmt.Fprintf(out, "  otel: enabled=%t endpoint=%s service=%s\n",
		settings.OTel.Enabled, settings.OTel.Endpoint, settings.OTel.ServiceName)
}
