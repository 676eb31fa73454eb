package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-web2pdf/internal/config"
)

func getenvFrom(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment variable loading
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Parallel()

	env, err := loadEnvConfig(getenvFrom(map[string]string{
		"WEB2PDF_CONFIG":            "/etc/web2pdf.yaml",
		"WEB2PDF_ADDR":              ":8080",
		"WEB2PDF_BACKEND":           "wkhtmltopdf",
		"WEB2PDF_NO_SANDBOX":        "true",
		"WEB2PDF_WKHTMLTOPDF_BIN":   "/opt/wk",
		"WEB2PDF_LAUNCH_TIMEOUT":    "20s",
		"WEB2PDF_OPERATION_TIMEOUT": "1m",
		"WEB2PDF_WAIT_UNTIL":        "networkidle",
		"WEB2PDF_POOL_CAPACITY":     "3",
		"WEB2PDF_POOL_WARM":         "1",
		"WEB2PDF_ACQUIRE_TIMEOUT":   "2s",
		"WEB2PDF_LOG_LEVEL":         "debug",
		"WEB2PDF_LOG_FORMAT":        "text",
		"ROD_BROWSER_BIN":           "/usr/bin/chromium",
	}))
	if err != nil {
		t.Fatalf("loadEnvConfig() error = %v", err)
	}

	if env.ConfigPath != "/etc/web2pdf.yaml" || env.Addr != ":8080" || env.Backend != "wkhtmltopdf" {
		t.Errorf("tier 1 = %+v", env)
	}
	if env.NoSandbox == nil || !*env.NoSandbox {
		t.Errorf("NoSandbox = %v, want true", env.NoSandbox)
	}
	if env.BrowserBin != "/usr/bin/chromium" {
		t.Errorf("BrowserBin = %q, want ROD_BROWSER_BIN fallback", env.BrowserBin)
	}
	if env.LaunchTimeout != 20*time.Second || env.OperationTimeout != time.Minute || env.AcquireTimeout != 2*time.Second {
		t.Errorf("durations = %v %v %v", env.LaunchTimeout, env.OperationTimeout, env.AcquireTimeout)
	}
	if env.PoolCapacity != 3 || env.PoolWarm != 1 {
		t.Errorf("pool = %d/%d, want 3/1", env.PoolCapacity, env.PoolWarm)
	}
}

func TestLoadEnvConfig_BrowserBinPrecedence(t *testing.T) {
	t.Parallel()

	env, err := loadEnvConfig(getenvFrom(map[string]string{
		"WEB2PDF_BROWSER_BIN": "/a",
		"ROD_BROWSER_BIN":     "/b",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if env.BrowserBin != "/a" {
		t.Errorf("BrowserBin = %q, want /a", env.BrowserBin)
	}
}

func TestLoadEnvConfig_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "WEB2PDF_LAUNCH_TIMEOUT", "soon"},
		{"negative duration", "WEB2PDF_ACQUIRE_TIMEOUT", "-1s"},
		{"bad number", "WEB2PDF_POOL_CAPACITY", "many"},
		{"negative number", "WEB2PDF_POOL_WARM", "-2"},
		{"bad bool", "WEB2PDF_NO_SANDBOX", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadEnvConfig(getenvFrom(map[string]string{tt.key: tt.val}))
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("error = %v, want ErrUsage", err)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q should name %s", err, tt.key)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf, []string{
		"WEB2PDF_ADDR=:1",
		"WEB2PDF_POOL_SIZE=4",
		"HOME=/root",
	})

	out := buf.String()
	if !strings.Contains(out, "WEB2PDF_POOL_SIZE") {
		t.Errorf("expected warning for WEB2PDF_POOL_SIZE, got %q", out)
	}
	if strings.Contains(out, "WEB2PDF_ADDR") || strings.Contains(out, "HOME") {
		t.Errorf("unexpected warning in %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestApplyEnvConfig - Env overrides file values
// ---------------------------------------------------------------------------

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	t.Run("set values override", func(t *testing.T) {
		t.Parallel()

		no := false
		cfg := config.Default()
		cfg.Engine.NoSandbox = true
		applyEnvConfig(&envConfig{
			Addr:           ":9000",
			NoSandbox:      &no,
			PoolCapacity:   2,
			AcquireTimeout: 3 * time.Second,
			LogFormat:      "text",
		}, cfg)

		if cfg.Server.Addr != ":9000" {
			t.Errorf("Addr = %q", cfg.Server.Addr)
		}
		if cfg.Engine.NoSandbox {
			t.Error("NoSandbox should be overridden to false")
		}
		if cfg.Pool.Capacity != 2 || cfg.Pool.AcquireTimeout.Std() != 3*time.Second {
			t.Errorf("pool = %+v", cfg.Pool)
		}
		if cfg.Log.Format != "text" {
			t.Errorf("Log.Format = %q", cfg.Log.Format)
		}
	})

	t.Run("unset values keep config", func(t *testing.T) {
		t.Parallel()

		cfg := config.Default()
		cfg.Engine.NoSandbox = true
		want := *cfg
		applyEnvConfig(&envConfig{}, cfg)

		if cfg.Server.Addr != want.Server.Addr || cfg.Engine != want.Engine || cfg.Pool != want.Pool {
			t.Errorf("config changed: %+v", cfg)
		}
	})
}
