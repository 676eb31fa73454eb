// Package web2pdf renders web pages and HTML documents to PDF with a pool
// of reusable browser engines.
//
// # Quick Start
//
// Create one pool per process, wrap it in a renderer, and close the pool
// when done:
//
//	pool := web2pdf.NewPool(web2pdf.NewChromeEngineFactory(web2pdf.ChromeConfig{}))
//	defer pool.Close()
//
//	r := web2pdf.NewRenderer(pool)
//	res, err := r.Render(ctx, web2pdf.NewURLJob("https://example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(res.Filename, res.PDF, 0644)
//
// Literal HTML takes an optional stylesheet:
//
//	job := web2pdf.NewContentJob("<h1>Invoice</h1>", "h1 { color: navy; }",
//	    web2pdf.WithOrientation(web2pdf.OrientationLandscape),
//	    web2pdf.WithOutputName("invoice"),
//	)
//
// Every document is A4 with 10mm margins and printed backgrounds; the
// orientation is the only page setting a job controls.
//
// # Engines
//
// An Engine is one external rendering process. Two backends ship with the
// package:
//
//   - NewChromeEngineFactory drives headless Chrome over the DevTools
//     protocol (go-rod). One browser and one tab per engine.
//   - NewWkhtmlEngineFactory runs the wkhtmltopdf binary once per render.
//
// # Pooling
//
// Pool caps the number of live engines (see ResolvePoolSize) and hands each
// one to a single job at a time. Engines start lazily, or ahead of traffic
// with Pool.Warm. Acquire waits up to the acquire timeout for a slot, then
// fails with ErrServiceBusy. After a render the engine goes back to the pool
// unless the failure left it suspect (launch or print failure, timeout,
// panic), in which case it is stopped and replaced on demand.
//
// # Error Handling
//
// Render failures are *Error values classified by Kind. Match them with
// errors.Is against ErrValidation, ErrEngineLaunch, ErrNavigation,
// ErrStyleInjection, ErrRender or ErrServiceBusy, and check IsTimeout for
// elapsed deadlines:
//
//	res, err := r.Render(ctx, job)
//	switch {
//	case errors.Is(err, web2pdf.ErrValidation):
//	    // reject the request
//	case errors.Is(err, web2pdf.ErrServiceBusy):
//	    // retry later
//	}
//
// # Browser Requirements
//
// The Chrome backend needs Chrome/Chromium. When ChromeConfig.Bin is empty,
// go-rod looks for an installed browser and downloads a managed Chromium on
// first run (~/.cache/rod/browser/). In containers and CI, set
// ChromeConfig.NoSandbox.
package web2pdf
