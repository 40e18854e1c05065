// Command intakectl inspects a service catalog offline: it validates the file
// and evaluates field visibility for a set of values without running the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
