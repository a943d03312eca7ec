package main

import "os"

func main() {
	cmd, args := resolveCommand(os.Args[1:], defaultCommandDeps())
	os.Exit(cmd.Run(args))
}
