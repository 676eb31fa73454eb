package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-web2pdf/internal/fileutil"
	"github.com/alnah/go-web2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidConfig   = errors.New("invalid config")
)

// Backends.
const (
	BackendChrome      = "chrome"
	BackendWkhtmltopdf = "wkhtmltopdf"
)

// DefaultName is the config file searched for when none is given.
const DefaultName = "web2pdf"

// Config holds all service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Pool   PoolConfig   `yaml:"pool"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string `yaml:"corsOrigins"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes"`
}

// EngineConfig defines the rendering backend.
type EngineConfig struct {
	Backend          string   `yaml:"backend"`        // "chrome" or "wkhtmltopdf"
	BrowserBin       string   `yaml:"browserBin"`     // empty: rod finds or downloads Chrome
	NoSandbox        bool     `yaml:"noSandbox"`      // required in most containers
	WkhtmltopdfBin   string   `yaml:"wkhtmltopdfBin"` // empty: PATH lookup
	LaunchTimeout    Duration `yaml:"launchTimeout"`
	OperationTimeout Duration `yaml:"operationTimeout"`
	StopTimeout      Duration `yaml:"stopTimeout"`
	WaitUntil        string   `yaml:"waitUntil"` // load, domcontentloaded, networkidle
}

// PoolConfig defines engine pooling.
type PoolConfig struct {
	Capacity       int      `yaml:"capacity"` // 0: derived from GOMAXPROCS
	Warm           int      `yaml:"warm"`     // engines started before serving
	AcquireTimeout Duration `yaml:"acquireTimeout"`
}

// LogConfig defines structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Source bool   `yaml:"source"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(120 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    10 << 20,
		},
		Engine: EngineConfig{
			Backend:          BackendChrome,
			LaunchTimeout:    Duration(10 * time.Second),
			OperationTimeout: Duration(30 * time.Second),
			StopTimeout:      Duration(5 * time.Second),
			WaitUntil:        "load",
		},
		Pool: PoolConfig{
			AcquireTimeout: Duration(15 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks values that would otherwise fail late, at first request.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr: required")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.maxBodyBytes: must not be negative, got %d", c.Server.MaxBodyBytes)
	}

	switch c.Engine.Backend {
	case BackendChrome, BackendWkhtmltopdf:
	default:
		add("engine.backend: invalid value %q (must be chrome or wkhtmltopdf)", c.Engine.Backend)
	}
	switch strings.ToLower(c.Engine.WaitUntil) {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		add("engine.waitUntil: invalid value %q (must be load, domcontentloaded or networkidle)", c.Engine.WaitUntil)
	}

	for name, d := range map[string]Duration{
		"server.readTimeout":      c.Server.ReadTimeout,
		"server.writeTimeout":     c.Server.WriteTimeout,
		"server.shutdownTimeout":  c.Server.ShutdownTimeout,
		"engine.launchTimeout":    c.Engine.LaunchTimeout,
		"engine.operationTimeout": c.Engine.OperationTimeout,
		"engine.stopTimeout":      c.Engine.StopTimeout,
		"pool.acquireTimeout":     c.Pool.AcquireTimeout,
	} {
		if d <= 0 {
			add("%s: must be positive, got %s", name, d)
		}
	}

	if c.Pool.Capacity < 0 {
		add("pool.capacity: must not be negative, got %d", c.Pool.Capacity)
	}
	if c.Pool.Warm < 0 {
		add("pool.warm: must not be negative, got %d", c.Pool.Warm)
	}
	if c.Pool.Capacity > 0 && c.Pool.Warm > c.Pool.Capacity {
		add("pool.warm: %d exceeds pool.capacity %d", c.Pool.Warm, c.Pool.Capacity)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level: invalid value %q (must be debug, info, warn or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("log.format: invalid value %q (must be json or text)", c.Log.Format)
	}

	return errors.Join(errs...)
}

// Load reads configuration from a file path or config name, on top of the
// defaults. A name without a path separator is searched in standard
// locations. Returns error if the file is not found (no silent fallback).
func Load(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := yamlutil.ReadFileStrict(configPath, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover returns the first default config file that exists, or "".
func Discover() string {
	for _, p := range SearchPaths(DefaultName) {
		if fileutil.FileExists(p) {
			return p
		}
	}
	return ""
}

// SearchPaths lists where a config name is looked up, in order:
// current directory, then the user config directory.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(dir, "web2pdf", name+ext))
		}
	}
	return paths
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlutil.Marshal(c)
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
