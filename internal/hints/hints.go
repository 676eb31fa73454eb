// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-web2pdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// IsInCI reports whether a common CI environment variable is set.
func IsInCI() bool {
	return os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""
}

// ForEngineLaunch returns hints for an engine that failed to start.
// noSandbox is the effective sandbox setting of the chrome backend.
func ForEngineLaunch(backend string, noSandbox bool) string {
	var hints []string

	switch backend {
	case "wkhtmltopdf":
		if os.Getenv("WEB2PDF_WKHTMLTOPDF_BIN") == "" {
			hints = append(hints, "install wkhtmltopdf or set WEB2PDF_WKHTMLTOPDF_BIN")
		}
	default:
		if (IsInCI() || IsInContainer()) && !noSandbox {
			hints = append(hints, "set engine.noSandbox or WEB2PDF_NO_SANDBOX=1 for Docker/CI")
		}
		if os.Getenv("WEB2PDF_BROWSER_BIN") == "" && os.Getenv("ROD_BROWSER_BIN") == "" {
			hints = append(hints, "set WEB2PDF_BROWSER_BIN to use a pre-installed Chrome")
		}
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about raising the timeout behind flag.
func ForTimeout(flag string) string {
	return format("raise --" + flag + " if the backend is slow")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/web2pdf/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/web2pdf") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForAddressInUse returns a hint for a listener that could not bind.
func ForAddressInUse() string {
	return format("pick another port with --addr or WEB2PDF_ADDR")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
