package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-web2pdf/internal/process"
)

// ChromeConfig configures the headless Chrome backend.
type ChromeConfig struct {
	// Bin is the browser executable. Empty lets rod find or download one.
	Bin string

	// NoSandbox disables the Chrome sandbox, required in most containers.
	NoSandbox bool
}

// NewChromeEngineFactory returns a factory for headless Chrome engines.
// Each engine owns one browser process and one reusable tab.
func NewChromeEngineFactory(cfg ChromeConfig) EngineFactory {
	return func() Engine {
		return &rodEngine{cfg: cfg}
	}
}

var _ Engine = (*rodEngine)(nil)

var errEngineStopped = errors.New("engine stopped")

// rodEngine drives one Chrome process through the DevTools protocol.
type rodEngine struct {
	cfg ChromeConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	stopped  bool
}

func (e *rodEngine) Start(ctx context.Context) error {
	l := launcher.New().
		Headless(true).
		NoSandbox(e.cfg.NoSandbox).
		Set("disable-gpu").
		Set("single-process").
		Set("no-zygote").
		Set("disable-dev-shm-usage")
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}

	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return errEngineStopped
	}

	u, err := l.Context(ctx).Launch()
	if err != nil {
		discardLauncher(l)
		return fmt.Errorf("launching chrome: %w", err)
	}

	// The launcher is only published once the browser runs; Stop never
	// sees a half-launched one.
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		killLauncher(l)
		return errEngineStopped
	}
	e.launcher = l
	e.mu.Unlock()

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("opening tab: %w", err)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		// Stop ran while we were connecting and already reaped the launcher.
		_ = browser.Close()
		return errEngineStopped
	}
	// Detach from the start context; each operation brings its own.
	e.browser = browser.Context(context.Background())
	e.page = page.Context(context.Background())
	e.mu.Unlock()
	return nil
}

func (e *rodEngine) tab(ctx context.Context) (*rod.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil, errEngineStopped
	}
	if e.page == nil {
		return nil, errors.New("engine not started")
	}
	return e.page.Context(ctx), nil
}

func (e *rodEngine) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	p, err := e.tab(ctx)
	if err != nil {
		return err
	}

	waitDone := p.WaitNavigation(lifecycleEvent(wait))
	if err := p.Navigate(url); err != nil {
		return err
	}
	waitDone()
	return ctx.Err()
}

func lifecycleEvent(w WaitCondition) proto.PageLifecycleEventName {
	switch w {
	case WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded
	case WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameLoad
	}
}

func (e *rodEngine) SetContent(ctx context.Context, html string) error {
	p, err := e.tab(ctx)
	if err != nil {
		return err
	}

	// Start from a blank document so nothing from the previous job leaks in.
	if err := p.Navigate("about:blank"); err != nil {
		return err
	}
	if err := p.SetDocumentContent(html); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (e *rodEngine) ApplyStylesheet(ctx context.Context, css string) error {
	p, err := e.tab(ctx)
	if err != nil {
		return err
	}
	return p.AddStyleTag("", css)
}

func (e *rodEngine) RenderPDF(ctx context.Context, params PDFParams) ([]byte, error) {
	p, err := e.tab(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := p.PDF(printOptions(params))
	if err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading PDF stream: %w", err)
	}
	return buf, nil
}

// printOptions maps params to the DevTools print request, which takes inches.
func printOptions(params PDFParams) *proto.PagePrintToPDF {
	return &proto.PagePrintToPDF{
		Landscape:           params.Landscape,
		PrintBackground:     params.PrintBackground,
		DisplayHeaderFooter: params.DisplayHeaderFooter,
		PaperWidth:          floatPtr(mmToInches(params.Format.WidthMM)),
		PaperHeight:         floatPtr(mmToInches(params.Format.HeightMM)),
		MarginTop:           floatPtr(mmToInches(params.Margins.Top)),
		MarginRight:         floatPtr(mmToInches(params.Margins.Right)),
		MarginBottom:        floatPtr(mmToInches(params.Margins.Bottom)),
		MarginLeft:          floatPtr(mmToInches(params.Margins.Left)),
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

// Stop closes the browser and kills the whole process tree.
func (e *rodEngine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	browser, l := e.browser, e.launcher
	e.browser, e.page, e.launcher = nil, nil, nil
	e.mu.Unlock()

	var err error
	if browser != nil {
		err = browser.Close()
	}
	if l != nil {
		killLauncher(l)
	}
	return err
}

// killLauncher reaps a launched browser's process group and its profile
// directory. Cleanup blocks until the browser process has exited.
func killLauncher(l *launcher.Launcher) {
	if l.PID() <= 0 {
		discardLauncher(l)
		return
	}
	process.KillGroup(l.PID())
	l.Kill()
	l.Cleanup()
}

// discardLauncher tears down after a failed Launch. rod only signals
// process exit once the browser command is running, so Cleanup would
// block forever here.
func discardLauncher(l *launcher.Launcher) {
	if pid := l.PID(); pid > 0 {
		process.KillGroup(pid)
	}
	if dir := l.Get(flags.UserDataDir); dir != "" {
		_ = os.RemoveAll(dir)
	}
}
