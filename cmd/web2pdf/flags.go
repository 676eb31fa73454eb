package main

import (
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-web2pdf/internal/config"
)

// serveFlags holds the serve command's overrides. Only flags the user
// actually set are applied, so zero values never mask the config file.
type serveFlags struct {
	config string

	addr string

	backend          string
	browserBin       string
	noSandbox        bool
	wkhtmltopdfBin   string
	launchTimeout    time.Duration
	operationTimeout time.Duration
	waitUntil        string

	poolCapacity   int
	poolWarm       int
	acquireTimeout time.Duration

	logLevel  string
	logFormat string
}

// newServeFlagSet registers serve flags into f.
func newServeFlagSet(name string, f *serveFlags, usage io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printServeUsage(usage) }

	addConfigFlag(fs, &f.config)

	fs.StringVar(&f.addr, "addr", "", "listen address")

	fs.StringVar(&f.backend, "backend", "", "rendering backend: chrome, wkhtmltopdf")
	fs.StringVar(&f.browserBin, "browser-bin", "", "Chrome executable")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox")
	fs.StringVar(&f.wkhtmltopdfBin, "wkhtmltopdf-bin", "", "wkhtmltopdf executable")
	fs.DurationVar(&f.launchTimeout, "launch-timeout", 0, "engine start timeout")
	fs.DurationVar(&f.operationTimeout, "operation-timeout", 0, "per-operation timeout")
	fs.StringVar(&f.waitUntil, "wait-until", "", "default wait: load, domcontentloaded, networkidle")

	fs.IntVar(&f.poolCapacity, "pool-capacity", 0, "maximum live engines (0 = auto)")
	fs.IntVar(&f.poolWarm, "pool-warm", 0, "engines started before serving")
	fs.DurationVar(&f.acquireTimeout, "acquire-timeout", 0, "wait for a free engine")

	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: json, text")

	return fs
}

// addConfigFlag registers --config, shared by every command that loads config.
func addConfigFlag(fs *flag.FlagSet, dst *string) {
	fs.StringVarP(dst, "config", "c", "", "config file name or path")
}

// parseFlags parses args, mapping flag errors to ErrUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return nil
}

// applyFlags overlays the flags the user set on cfg.
func applyFlags(fs *flag.FlagSet, f *serveFlags, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("addr", func() { cfg.Server.Addr = f.addr })
	set("backend", func() { cfg.Engine.Backend = f.backend })
	set("browser-bin", func() { cfg.Engine.BrowserBin = f.browserBin })
	set("no-sandbox", func() { cfg.Engine.NoSandbox = f.noSandbox })
	set("wkhtmltopdf-bin", func() { cfg.Engine.WkhtmltopdfBin = f.wkhtmltopdfBin })
	set("launch-timeout", func() { cfg.Engine.LaunchTimeout = config.Duration(f.launchTimeout) })
	set("operation-timeout", func() { cfg.Engine.OperationTimeout = config.Duration(f.operationTimeout) })
	set("wait-until", func() { cfg.Engine.WaitUntil = f.waitUntil })
	set("pool-capacity", func() { cfg.Pool.Capacity = f.poolCapacity })
	set("pool-warm", func() { cfg.Pool.Warm = f.poolWarm })
	set("acquire-timeout", func() { cfg.Pool.AcquireTimeout = config.Duration(f.acquireTimeout) })
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	set("log-format", func() { cfg.Log.Format = f.logFormat })
}
