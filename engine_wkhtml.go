package web2pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-web2pdf/internal/fileutil"
	"github.com/alnah/go-web2pdf/internal/process"
)

// DefaultWkhtmltopdfBin is looked up on PATH when no binary is configured.
const DefaultWkhtmltopdfBin = "wkhtmltopdf"

// networkIdleDelay approximates "network idle" for a backend that has no
// lifecycle events: wkhtmltopdf waits this long for scripts after load.
const networkIdleDelay = 500 * time.Millisecond

// killGrace is how long a cancelled wkhtmltopdf gets to flush its pipes.
const killGrace = 2 * time.Second

// WkhtmlConfig configures the legacy WebKit backend.
type WkhtmlConfig struct {
	// Bin is the wkhtmltopdf executable. Empty means PATH lookup.
	Bin string
}

// NewWkhtmlEngineFactory returns a factory for wkhtmltopdf engines. The
// binary runs once per render; a handle only holds the job's page state.
func NewWkhtmlEngineFactory(cfg WkhtmlConfig) EngineFactory {
	return func() Engine {
		return newWkhtmlEngine(cfg, &execRunner{}, exec.LookPath)
	}
}

// commandRunner abstracts process execution to enable testing without the binary.
type commandRunner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) (stdout []byte, stderr string, err error)
}

// execRunner runs commands in their own process group so a cancelled
// render takes its children down too.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	process.SetProcessGroup(cmd)
	cmd.Cancel = func() error {
		process.KillGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, stderr.String(), ctxErr
	}
	return stdout.Bytes(), stderr.String(), err
}

var _ Engine = (*wkhtmlEngine)(nil)

// wkhtmlEngine records the job's source and stylesheet, then invokes
// wkhtmltopdf once at render time.
type wkhtmlEngine struct {
	cfg      WkhtmlConfig
	runner   commandRunner
	lookPath func(string) (string, error)

	mu         sync.Mutex
	bin        string
	url        string
	html       string
	wait       WaitCondition
	cssPath    string
	cssCleanup func()
	stopped    bool
}

func newWkhtmlEngine(cfg WkhtmlConfig, runner commandRunner, lookPath func(string) (string, error)) *wkhtmlEngine {
	return &wkhtmlEngine{cfg: cfg, runner: runner, lookPath: lookPath}
}

func (e *wkhtmlEngine) Start(ctx context.Context) error {
	name := e.cfg.Bin
	if name == "" {
		name = DefaultWkhtmltopdfBin
	}
	bin, err := e.lookPath(name)
	if err != nil {
		return fmt.Errorf("locating %s: %w", name, err)
	}

	if _, stderr, err := e.runner.Run(ctx, nil, bin, "--version"); err != nil {
		return fmt.Errorf("%s --version: %s: %w", bin, strings.TrimSpace(stderr), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errEngineStopped
	}
	e.bin = bin
	return nil
}

func (e *wkhtmlEngine) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	e.reset()
	e.url = url
	e.wait = wait
	return ctx.Err()
}

func (e *wkhtmlEngine) SetContent(ctx context.Context, html string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	e.reset()
	e.html = html
	return ctx.Err()
}

func (e *wkhtmlEngine) ApplyStylesheet(ctx context.Context, css string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if e.url == "" && e.html == "" {
		return errors.New("no page loaded")
	}

	path, cleanup, err := fileutil.WriteTempFile(css, "css")
	if err != nil {
		return err
	}
	if e.cssCleanup != nil {
		e.cssCleanup()
	}
	e.cssPath, e.cssCleanup = path, cleanup
	return ctx.Err()
}

func (e *wkhtmlEngine) RenderPDF(ctx context.Context, params PDFParams) ([]byte, error) {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	bin := e.bin
	args := e.args(params)
	var stdin io.Reader
	if e.url == "" {
		stdin = strings.NewReader(e.html)
	}
	e.mu.Unlock()

	out, stderr, err := e.runner.Run(ctx, stdin, bin, args...)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return nil, fmt.Errorf("wkhtmltopdf: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}
	return out, nil
}

// args builds the command line. Callers hold e.mu.
func (e *wkhtmlEngine) args(params PDFParams) []string {
	orientation := "Portrait"
	if params.Landscape {
		orientation = "Landscape"
	}

	args := []string{
		"--quiet",
		"--encoding", "UTF-8",
		"--page-size", params.Format.Name,
		"--orientation", orientation,
		"--margin-top", mm(params.Margins.Top),
		"--margin-right", mm(params.Margins.Right),
		"--margin-bottom", mm(params.Margins.Bottom),
		"--margin-left", mm(params.Margins.Left),
	}
	if params.PrintBackground {
		args = append(args, "--background")
	} else {
		args = append(args, "--no-background")
	}
	if e.cssPath != "" {
		args = append(args, "--enable-local-file-access", "--user-style-sheet", e.cssPath)
	}
	if e.url != "" && e.wait == WaitNetworkIdle {
		args = append(args, "--javascript-delay", strconv.Itoa(int(networkIdleDelay.Milliseconds())))
	}

	input := "-"
	if e.url != "" {
		input = e.url
	}
	return append(args, input, "-")
}

func mm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "mm"
}

// ready reports whether the engine can take work. Callers hold e.mu.
func (e *wkhtmlEngine) ready() error {
	if e.stopped {
		return errEngineStopped
	}
	if e.bin == "" {
		return errors.New("engine not started")
	}
	return nil
}

// reset drops the previous job's page state. Callers hold e.mu.
func (e *wkhtmlEngine) reset() {
	e.url, e.html, e.wait = "", "", ""
	if e.cssCleanup != nil {
		e.cssCleanup()
	}
	e.cssPath, e.cssCleanup = "", nil
}

func (e *wkhtmlEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.reset()
	return nil
}
