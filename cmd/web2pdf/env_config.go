package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-web2pdf/internal/config"
)

const envPrefix = "WEB2PDF_"

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
// Zero values mean "not set".
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string // WEB2PDF_CONFIG: config file path
	Addr       string // WEB2PDF_ADDR: listen address
	Backend    string // WEB2PDF_BACKEND: chrome or wkhtmltopdf
	NoSandbox  *bool  // WEB2PDF_NO_SANDBOX: disable the Chrome sandbox

	// Tier 2 - Engines
	BrowserBin       string        // WEB2PDF_BROWSER_BIN, falls back to ROD_BROWSER_BIN
	WkhtmltopdfBin   string        // WEB2PDF_WKHTMLTOPDF_BIN
	LaunchTimeout    time.Duration // WEB2PDF_LAUNCH_TIMEOUT
	OperationTimeout time.Duration // WEB2PDF_OPERATION_TIMEOUT
	WaitUntil        string        // WEB2PDF_WAIT_UNTIL

	// Tier 3 - Pool and logging
	PoolCapacity   int           // WEB2PDF_POOL_CAPACITY
	PoolWarm       int           // WEB2PDF_POOL_WARM
	AcquireTimeout time.Duration // WEB2PDF_ACQUIRE_TIMEOUT
	LogLevel       string        // WEB2PDF_LOG_LEVEL
	LogFormat      string        // WEB2PDF_LOG_FORMAT
}

// knownEnvVars lists valid WEB2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"WEB2PDF_CONFIG":            true,
	"WEB2PDF_ADDR":              true,
	"WEB2PDF_BACKEND":           true,
	"WEB2PDF_NO_SANDBOX":        true,
	"WEB2PDF_BROWSER_BIN":       true,
	"WEB2PDF_WKHTMLTOPDF_BIN":   true,
	"WEB2PDF_LAUNCH_TIMEOUT":    true,
	"WEB2PDF_OPERATION_TIMEOUT": true,
	"WEB2PDF_WAIT_UNTIL":        true,
	"WEB2PDF_POOL_CAPACITY":     true,
	"WEB2PDF_POOL_WARM":         true,
	"WEB2PDF_ACQUIRE_TIMEOUT":   true,
	"WEB2PDF_LOG_LEVEL":         true,
	"WEB2PDF_LOG_FORMAT":        true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers, durations and booleans are reported together.
func loadEnvConfig(getenv func(string) string) (*envConfig, error) {
	cfg := &envConfig{
		ConfigPath:     getenv("WEB2PDF_CONFIG"),
		Addr:           getenv("WEB2PDF_ADDR"),
		Backend:        getenv("WEB2PDF_BACKEND"),
		BrowserBin:     getenv("WEB2PDF_BROWSER_BIN"),
		WkhtmltopdfBin: getenv("WEB2PDF_WKHTMLTOPDF_BIN"),
		WaitUntil:      getenv("WEB2PDF_WAIT_UNTIL"),
		LogLevel:       getenv("WEB2PDF_LOG_LEVEL"),
		LogFormat:      getenv("WEB2PDF_LOG_FORMAT"),
	}
	if cfg.BrowserBin == "" {
		cfg.BrowserBin = getenv("ROD_BROWSER_BIN")
	}

	var errs []error
	parseDuration := func(name string, dst *time.Duration) {
		v := getenv(name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
			return
		}
		*dst = d
	}
	parseInt := func(name string, dst *int) {
		v := getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid number %q", name, v))
			return
		}
		*dst = n
	}

	parseDuration("WEB2PDF_LAUNCH_TIMEOUT", &cfg.LaunchTimeout)
	parseDuration("WEB2PDF_OPERATION_TIMEOUT", &cfg.OperationTimeout)
	parseDuration("WEB2PDF_ACQUIRE_TIMEOUT", &cfg.AcquireTimeout)
	parseInt("WEB2PDF_POOL_CAPACITY", &cfg.PoolCapacity)
	parseInt("WEB2PDF_POOL_WARM", &cfg.PoolWarm)

	if v := getenv("WEB2PDF_NO_SANDBOX"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEB2PDF_NO_SANDBOX: invalid boolean %q", v))
		} else {
			cfg.NoSandbox = &b
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return cfg, nil
}

// warnUnknownEnvVars logs warnings for unrecognized WEB2PDF_* variables.
// Helps catch typos like WEB2PDF_POOL_SIZE instead of WEB2PDF_POOL_CAPACITY.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(kv, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig overlays set environment values on cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (flags are applied afterwards by applyFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.Backend != "" {
		cfg.Engine.Backend = env.Backend
	}
	if env.NoSandbox != nil {
		cfg.Engine.NoSandbox = *env.NoSandbox
	}
	if env.BrowserBin != "" {
		cfg.Engine.BrowserBin = env.BrowserBin
	}
	if env.WkhtmltopdfBin != "" {
		cfg.Engine.WkhtmltopdfBin = env.WkhtmltopdfBin
	}
	if env.LaunchTimeout > 0 {
		cfg.Engine.LaunchTimeout = config.Duration(env.LaunchTimeout)
	}
	if env.OperationTimeout > 0 {
		cfg.Engine.OperationTimeout = config.Duration(env.OperationTimeout)
	}
	if env.WaitUntil != "" {
		cfg.Engine.WaitUntil = env.WaitUntil
	}
	if env.PoolCapacity > 0 {
		cfg.Pool.Capacity = env.PoolCapacity
	}
	if env.PoolWarm > 0 {
		cfg.Pool.Warm = env.PoolWarm
	}
	if env.AcquireTimeout > 0 {
		cfg.Pool.AcquireTimeout = config.Duration(env.AcquireTimeout)
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
}
