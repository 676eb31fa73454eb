package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/hints"
	"github.com/alnah/go-web2pdf/internal/httpapi"
	"github.com/alnah/go-web2pdf/internal/logger"
	"github.com/alnah/go-web2pdf/internal/middleware"
	"github.com/alnah/go-web2pdf/internal/shutdown"
)

// readHeaderTimeout bounds slow-header clients independently of body reads.
const readHeaderTimeout = 10 * time.Second

// runServe parses serve flags, resolves config and serves until a signal.
func runServe(args []string, env *Environment) error {
	var f serveFlags
	fs := newServeFlagSet("serve", &f, env.Stdout)
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

	ctx, stop := notifyContext(context.Background())
	defer stop()

	return serve(ctx, cfg, env, nil)
}

// serve runs the service until ctx is done. A nil ready is ignored;
// otherwise it receives the bound address once the listener is up.
func serve(ctx context.Context, cfg *config.Config, env *Environment, ready func(addr string)) error {
	log := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    env.Stderr,
		AddSource: cfg.Log.Source,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := web2pdf.NewMetrics(reg)

	pool := web2pdf.NewPool(engineFactory(cfg.Engine),
		web2pdf.WithCapacity(cfg.Pool.Capacity),
		web2pdf.WithAcquireTimeout(cfg.Pool.AcquireTimeout.Std()),
		web2pdf.WithLaunchTimeout(cfg.Engine.LaunchTimeout.Std()),
		web2pdf.WithOperationTimeout(cfg.Engine.OperationTimeout.Std()),
		web2pdf.WithStopTimeout(cfg.Engine.StopTimeout.Std()),
		web2pdf.WithPoolLogger(log.WithComponent("pool").Logger),
		web2pdf.WithPoolMetrics(metrics),
	)
	log.Info("pool created", "backend", cfg.Engine.Backend, "capacity", pool.Capacity())

	if cfg.Pool.Warm > 0 {
		if err := pool.Warm(ctx, cfg.Pool.Warm); err != nil {
			_ = pool.Close()
			return fmt.Errorf("warming pool: %w%s", err, hints.ForEngineLaunch(cfg.Engine.Backend, cfg.Engine.NoSandbox))
		}
		log.Info("pool warmed", "engines", cfg.Pool.Warm)
	}

	// Validated by config; an empty value keeps the renderer default.
	wait, _ := web2pdf.ParseWaitCondition(cfg.Engine.WaitUntil)
	renderer := web2pdf.NewRenderer(pool,
		web2pdf.WithLogger(log.WithComponent("renderer").Logger),
		web2pdf.WithDefaultWait(wait),
		web2pdf.WithMetrics(metrics),
	)

	handler := httpapi.NewRouter(httpapi.Options{
		Renderer:     renderer,
		Stats:        pool,
		Logger:       log,
		Gatherer:     reg,
		HTTPMetrics:  middleware.NewHTTPMetrics(reg),
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = pool.Close()
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("listen %s: %w%s", cfg.Server.Addr, err, hints.ForAddressInUse())
		}
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
	}

	// LIFO: the listener drains before the pool stops its engines.
	mgr := shutdown.NewManager(log.WithComponent("shutdown").Logger, cfg.Server.ShutdownTimeout.Std())
	mgr.Register("pool", func(context.Context) error { return pool.Close() })
	mgr.Register("http", srv.Shutdown)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	log.Info("listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}

	return errors.Join(serveErr, mgr.Shutdown())
}

// engineFactory picks the backend named by cfg.
func engineFactory(cfg config.EngineConfig) web2pdf.EngineFactory {
	if cfg.Backend == config.BackendWkhtmltopdf {
		return web2pdf.NewWkhtmlEngineFactory(web2pdf.WkhtmlConfig{Bin: cfg.WkhtmltopdfBin})
	}
	return web2pdf.NewChromeEngineFactory(web2pdf.ChromeConfig{
		Bin:       cfg.BrowserBin,
		NoSandbox: cfg.NoSandbox,
	})
}
