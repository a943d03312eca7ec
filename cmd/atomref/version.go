package main

import (
	"fmt"
	"io"

	"atomref/internal/version"
)

func runVersion(out io.Writer) int {
	fmt.Fprintln(out, version.Current().String())
	return 0
}
