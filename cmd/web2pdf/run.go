package main

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	flag "github.com/spf13/pflag"
)

// run dispatches to a subcommand. With no command, or flags only, it serves.
func run(args []string, env *Environment) error {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && !isHelpArg(args[0])) {
		return runServe(args, env)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "config":
		return runConfigCmd(rest, env)
	case "version", "--version":
		printVersion(env.Stdout)
		return nil
	case "help", "-h", "--help":
		return runHelp(rest, env.Stdout)
	default:
		printUsage(env.Stderr)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func isHelpArg(s string) bool {
	return s == "-h" || s == "--help" || s == "--version"
}

// runConfigCmd prints the effective configuration as YAML.
func runConfigCmd(args []string, env *Environment) error {
	var f serveFlags
	fs := newServeFlagSet("config", &f, env.Stdout)
	fs.Usage = func() { printConfigUsage(env.Stdout) }
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.Usage()
			return nil
		}
		return err
	}

	cfg, err := resolveConfig(f.config, fs, &f, env)
	if err != nil {
		return err
	}
	out, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = env.Stdout.Write(out)
	return err
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "web2pdf %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
