package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-web2pdf/internal/config"
	"github.com/alnah/go-web2pdf/internal/fileutil"
)

// versionProbeTimeout bounds `<binary> --version`.
const versionProbeTimeout = 5 * time.Second

// errNotReady is returned when doctor finds blocking problems.
var errNotReady = errors.New("doctor: not ready (see errors above)")

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Config   configInfo  `json:"config"`
	Backend  backendInfo `json:"backend"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// configInfo reports which configuration doctor evaluated.
type configInfo struct {
	Valid    bool   `json:"valid"`
	Source   string `json:"source"` // file path or "defaults"
	Capacity int    `json:"pool_capacity"`
}

// backendInfo holds rendering backend detection results.
type backendInfo struct {
	Name    string `json:"name"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command.
// Warnings still succeed; errors return errNotReady.
func runDoctorCmd(args []string, env *Environment) error {
	var (
		jsonOutput bool
		configName string
	)
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&jsonOutput, "json", false, "machine-readable output")
	addConfigFlag(fs, &configName)
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printDoctorUsage(env.Stdout)
			return nil
		}
		return err
	}

	result := runDoctor(configName, env)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return errNotReady
	}
	return nil
}

// runDoctor performs all diagnostic checks.
func runDoctor(configName string, env *Environment) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	cfg := checkConfig(result, configName, env)
	checkBackend(result, cfg.Engine, env)
	checkEnvironment(result, cfg.Engine, env)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkConfig resolves the effective config. An invalid config is an
// error, but the remaining checks still run against the defaults.
func checkConfig(result *doctorResult, configName string, env *Environment) *config.Config {
	source := configName
	if source == "" {
		source = env.getenv("WEB2PDF_CONFIG")
	}
	if source == "" {
		source = config.Discover()
	}
	if source == "" {
		source = "defaults"
	}
	result.Config.Source = source

	cfg, err := resolveConfig(configName, nil, nil, &Environment{
		Stdout:  io.Discard,
		Stderr:  io.Discard,
		Getenv:  env.Getenv,
		Environ: env.Environ,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
		cfg = config.Default()
	} else {
		result.Config.Valid = true
	}
	result.Config.Capacity = cfg.Pool.Capacity
	return cfg
}

// checkBackend detects the configured rendering backend.
func checkBackend(result *doctorResult, cfg config.EngineConfig, env *Environment) {
	result.Backend.Name = cfg.Backend

	var path string
	switch cfg.Backend {
	case config.BackendWkhtmltopdf:
		bin := cfg.WkhtmltopdfBin
		if bin == "" {
			bin = "wkhtmltopdf"
		}
		p, err := env.lookPath(bin)
		if err != nil {
			result.Errors = append(result.Errors,
				"wkhtmltopdf not found. Install it or set WEB2PDF_WKHTMLTOPDF_BIN")
			return
		}
		path = p
	default:
		result.Backend.Sandbox = !cfg.NoSandbox
		path = cfg.BrowserBin
		if path == "" {
			var found bool
			if path, found = env.chromePath(); !found {
				result.Errors = append(result.Errors,
					"Chrome/Chromium not found. Install Chrome or set WEB2PDF_BROWSER_BIN")
				return
			}
		}
		if !fileutil.FileExists(path) {
			result.Errors = append(result.Errors, fmt.Sprintf("Chrome not found at %s", path))
			return
		}
	}

	result.Backend.Found = true
	result.Backend.Path = path

	version, err := probeVersion(path)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get %s version: %v", cfg.Backend, err))
		return
	}
	result.Backend.Version = version
}

// probeVersion runs `<path> --version`.
func probeVersion(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output() // #nosec G204 -- operator-configured binary
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, cfg config.EngineConfig, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer(env)

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if env.getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if cfg.Backend == config.BackendChrome && (result.Env.Container || result.Env.CI) && !cfg.NoSandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but the Chrome sandbox is on. Set WEB2PDF_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(env *Environment) (bool, string) {
	// Explicit override (highest priority)
	if env.getenv("WEB2PDF_CONTAINER") == "1" {
		return true, "WEB2PDF_CONTAINER=1"
	}
	// Docker
	if fileutil.FileExists("/.dockerenv") {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn
	if v := env.getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if env.getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	if err := fileutil.TempDirWritable(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %v", err))
		return
	}
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "web2pdf doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config")
	if r.Config.Valid {
		fmt.Fprintf(w, "  [OK] Source: %s\n", r.Config.Source)
	} else {
		fmt.Fprintf(w, "  [ERROR] Source: %s (invalid)\n", r.Config.Source)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Backend (%s)\n", r.Backend.Name)
	if r.Backend.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Backend.Path)
		if r.Backend.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Backend.Version)
		}
		if r.Backend.Name == config.BackendChrome {
			if r.Backend.Sandbox {
				fmt.Fprintln(w, "  [OK] Sandbox: enabled")
			} else {
				fmt.Fprintln(w, "  [OK] Sandbox: disabled")
			}
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to serve")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
