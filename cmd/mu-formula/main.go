// Command mu-formula installs the mu CLI from its release formula and
// maintains that formula.
//
// Usage:
//
//	mu-formula install           # stable build for this OS
//	mu-formula install --devel   # latest develop build
//	mu-formula render > mu-cli.rb
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
