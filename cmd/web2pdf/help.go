package main

import (
	"fmt"
	"io"
)

// runHelp prints help for a command, or the main usage.
func runHelp(args []string, w io.Writer) error {
	if len(args) == 0 {
		printUsage(w)
		return nil
	}
	switch args[0] {
	case "serve":
		printServeUsage(w)
	case "doctor":
		printDoctorUsage(w)
	case "config":
		printConfigUsage(w)
	case "version":
		fmt.Fprintln(w, "Usage: web2pdf version")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Show version information.")
	default:
		printUsage(w)
		return fmt.Errorf("%w: unknown help topic %q", ErrUsage, args[0])
	}
	return nil
}

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf [command] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Serve the PDF rendering API (default)")
	fmt.Fprintln(w, "  doctor     Check the rendering backend and environment")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'web2pdf help <command>' for details on a specific command.")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve GET /pdf/url, POST /pdf/content, POST /pdf/html, /health and /metrics.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -c, --config <name>          Config file name or path")
	fmt.Fprintln(w, "      --addr <addr>            Listen address (default :5000)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Engine:")
	fmt.Fprintln(w, "      --backend <s>            chrome or wkhtmltopdf")
	fmt.Fprintln(w, "      --browser-bin <path>     Chrome executable")
	fmt.Fprintln(w, "      --no-sandbox             Disable the Chrome sandbox (containers)")
	fmt.Fprintln(w, "      --wkhtmltopdf-bin <path> wkhtmltopdf executable")
	fmt.Fprintln(w, "      --launch-timeout <d>     Engine start timeout (default 10s)")
	fmt.Fprintln(w, "      --operation-timeout <d>  Per-operation timeout (default 30s)")
	fmt.Fprintln(w, "      --wait-until <s>         load, domcontentloaded, networkidle")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pool:")
	fmt.Fprintln(w, "      --pool-capacity <n>      Maximum live engines (0 = auto)")
	fmt.Fprintln(w, "      --pool-warm <n>          Engines started before serving")
	fmt.Fprintln(w, "      --acquire-timeout <d>    Wait for a free engine (default 15s)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logging:")
	fmt.Fprintln(w, "      --log-level <s>          debug, info, warn, error")
	fmt.Fprintln(w, "      --log-format <s>         json, text")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (WEB2PDF_ADDR, WEB2PDF_BACKEND, WEB2PDF_NO_SANDBOX, ...)")
	fmt.Fprintln(w, "override the config file; flags override both.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf doctor [--json] [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check the configured rendering backend, container/CI setup and temp directory.")
	fmt.Fprintln(w, "Exits non-zero when a blocking problem is found.")
}

// printConfigUsage prints usage for the config command.
func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: web2pdf config [serve flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the effective configuration as YAML, after env vars and flags.")
}
