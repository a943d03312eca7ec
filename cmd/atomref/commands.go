package main

import (
	"fmt"
	"io"
	"os"
)

type command interface {
	Run(args []string) int
}

type commandDeps struct {
	Stdout            io.Writer
	Stderr            io.Writer
	Environ           func() []string
	RunStress         func(args []string, env runEnv) int
	RunValidateConfig func(args []string, env runEnv) int
	RunVersion        func(out io.Writer) int
}

// runEnv is what a subcommand sees of the process.
type runEnv struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		Environ:           os.Environ,
		RunStress:         runStress,
		RunValidateConfig: runValidateConfig,
		RunVersion:        runVersion,
	}
}

func (d commandDeps) env() runEnv {
	var environ []string
	if d.Environ != nil {
		environ = d.Environ()
	}
	return runEnv{Stdout: d.Stdout, Stderr: d.Stderr, Environ: environ}
}

type stressCommand struct {
	deps commandDeps
}

func (c stressCommand) Run(args []string) int {
	return c.deps.RunStress(args, c.deps.env())
}

type validateConfigCommand struct {
	deps commandDeps
}

func (c validateConfigCommand) Run(args []string) int {
	return c.deps.RunValidateConfig(args, c.deps.env())
}

type versionCommand struct {
	deps commandDeps
}

func (c versionCommand) Run(args []string) int {
	return c.deps.RunVersion(c.deps.Stdout)
}

type usageCommand struct {
	deps    commandDeps
	unknown string
}

func (c usageCommand) Run(args []string) int {
	if c.unknown != "" {
		fmt.Fprintf(c.deps.Stderr, "unknown command %q\n\n", c.unknown)
		printUsage(c.deps.Stderr)
		return 2
	}
	printUsage(c.deps.Stdout)
	return 0
}

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) == 0 {
		return usageCommand{deps: deps}, nil
	}
	switch args[0] {
	case "stress":
		return stressCommand{deps: deps}, args[1:]
	case "validate-config":
		return validateConfigCommand{deps: deps}, args[1:]
	case "config":
		if len(args) > 1 && args[1] == "validate" {
			return validateConfigCommand{deps: deps}, args[2:]
		}
	case "version", "-v", "--version":
		return versionCommand{deps: deps}, args[1:]
	case "help", "-h", "--help":
		return usageCommand{deps: deps}, args[1:]
	}
	return usageCommand{deps: deps, unknown: args[0]}, args
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: atomref <command> [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  stress            Run concurrent increments against an atom and verify the transition chain")
	fmt.Fprintln(out, "  validate-config   Load a settings file and report every problem")
	fmt.Fprintln(out, "  version           Print version and exit")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run 'atomref <command> -h' for command options.")
}
