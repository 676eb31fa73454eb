// Command web2pdf serves the URL and HTML to PDF rendering API.
package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	env := DefaultEnv()
	if err := run(os.Args[1:], env); err != nil {
		fmt.Fprintln(env.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
