package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atomref/internal/cli"
	"atomref/internal/metrics"
	"atomref/internal/otel"
	"atomref/internal/predicate"
	"atomref/internal/version"
)

const otelShutdownTimeout = 5 * time.Second

func runStress(args []string, env runEnv) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runStressContext(ctx, args, env)
}

func runStressContext(ctx context.Context, args []string, env runEnv) int {
	fs := flag.NewFlagSet("atomref stress", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	common := cli.AddCommonFlags(fs, "")
	name := fs.String("name", "", "Atom name used in logs and metrics (env: ATOMREF_STRESS_NAME)")
	workers := fs.Int64("workers", 0, "Concurrent workers (env: ATOMREF_STRESS_WORKERS)")
	increments := fs.Int64("increments", 0, "Increments per worker (env: ATOMREF_STRESS_INCREMENTS)")
	validatorExpr := fs.String("validator", "", "Predicate over value every candidate must satisfy (env: ATOMREF_STRESS_VALIDATOR)")
	showMetrics := fs.Bool("metrics", true, "Print Prometheus metrics after the run")
	fs.Usage = func() {
		printStressHelp(fs.Output())
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

	overrides := map[string]any{}
	if cli.FlagProvided(fs, "name") {
		overrides["stress.name"] = *name
	}
	if cli.FlagProvided(fs, "workers") {
		overrides["stress.workers"] = *workers
	}
	if cli.FlagProvided(fs, "increments") {
		overrides["stress.increments"] = *increments
	}
	if cli.FlagProvided(fs, "validator") {
		overrides["stress.validator"] = *validatorExpr
	}
	path := common.ConfigPath(fs, lookupIn(env.Environ))
	settings, err := loadSettings(path, env.Environ, overrides)
	if err != nil {
		fmt.Fprintln(env.Stderr, "invalid settings:")
		writeProblems(env.Stderr, err)
		return 1
	}
	logger := newLogger(settings, common.Verbose, env.Stderr)
	logger.Debug("atomref starting", version.Current().Fields())

	shutdown, err := otel.SetupSDK(ctx, otel.SDKOptions{
		Enabled:        settings.OTel.Enabled,
		HTTPEndpoint:   settings.OTel.Endpoint,
		ServiceName:    settings.OTel.ServiceName,
		ServiceVersion: version.Current().Version,
	})
	if err != nil {
		logger.Warn("otel sdk setup failed", map[string]string{"error": err.Error()})
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("otel sdk shutdown failed", map[string]string{"error": err.Error()})
			}
		}()
	}
	instruments, err := otel.NewInstruments(nil)
	if err != nil {
		logger.Warn("otel instruments unavailable", map[string]string{"error": err.Error()})
	}

	validator, err := predicate.Compile[int64](settings.Stress.Validator)
	if err != nil {
		fmt.Fprintf(env.Stderr, "stress.validator: %v\n", err)
		return 1
	}

	registry := &metrics.Registry{}
	result, err := runScenario(ctx, scenarioOptions{
		Name:        settings.Stress.Name,
		Workers:     int(settings.Stress.Workers),
		Increments:  settings.Stress.Increments,
		Validator:   validator,
		Logger:      logger,
		Metrics:     registry,
		Instruments: instruments,
	})
	writeSummary(env.Stdout, result, err)
	if *showMetrics {
		fmt.Fprintln(env.Stdout)
		if err := registry.WritePrometheus(env.Stdout); err != nil {
			fmt.Fprintf(env.Stderr, "write metrics: %v\n", err)
			return 1
		}
	}
	if err != nil {
		return 1
	}
	return 0
}

func writeSummary(out io.Writer, result scenarioResult, err error) {
	fmt.Fprintf(out, "run %s\n", result.RunID)
	fmt.Fprintf(out, "atom %s: final=%d commits=%d rejected=%d attempted=%d\n",
		result.Name, result.Final, result.Commits, result.Rejected, result.Attempted)
	fmt.Fprintf(out, "cas retries=%d watch failures=%d events delivered=%d duration=%s\n",
		result.Counters.Retries, result.Counters.WatchFailures, result.Delivered, result.Duration.Round(time.Microsecond))
	if err != nil {
		fmt.Fprintf(out, "FAILED %v\n", err)
		return
	}
	fmt.Fprintf(out, "OK chain 0 -> %d verified\n", result.Final)
}

func printStressHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: atomref stress [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Runs workers that each swap value+1 into a shared atom, then verifies")
	fmt.Fprintln(out, "that the committed transitions form one chain from 0 to the final value.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
}
