package web2pdf

import "context"

// Engine abstracts one external rendering process or session so the pool
// can drive headless Chrome and the wkhtmltopdf binary the same way.
//
// An Engine is owned by a single Handle and is never used by two jobs at
// once. Implementations must honor ctx on every blocking call; Stop may be
// called concurrently with an abandoned operation and must be idempotent.
type Engine interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, url string, wait WaitCondition) error
	SetContent(ctx context.Context, html string) error
	ApplyStylesheet(ctx context.Context, css string) error
	RenderPDF(ctx context.Context, params PDFParams) ([]byte, error)
	Stop() error
}

// EngineFactory returns a new, unstarted engine.
type EngineFactory func() Engine

// PageFormat is a named paper size in millimeters.
type PageFormat struct {
	Name     string
	WidthMM  float64
	HeightMM float64
}

// PageA4 is the only paper size the renderer produces.
var PageA4 = PageFormat{Name: "A4", WidthMM: 210, HeightMM: 297}

// Margins in millimeters.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// defaultMarginMM is applied to all four sides.
const defaultMarginMM = 10

// PDFParams controls print output.
type PDFParams struct {
	Format              PageFormat
	Landscape           bool
	Margins             Margins
	PrintBackground     bool
	DisplayHeaderFooter bool
}

// DefaultPDFParams returns the fixed print settings: A4, 10mm margins,
// backgrounds printed, no header or footer. Orientation is the only variable.
func DefaultPDFParams(o Orientation) PDFParams {
	return PDFParams{
		Format:    PageA4,
		Landscape: o == OrientationLandscape,
		Margins: Margins{
			Top:    defaultMarginMM,
			Right:  defaultMarginMM,
			Bottom: defaultMarginMM,
			Left:   defaultMarginMM,
		},
		PrintBackground:     true,
		DisplayHeaderFooter: false,
	}
}

// mmPerInch converts millimeters for backends that take inches.
const mmPerInch = 25.4

func mmToInches(mm float64) float64 {
	return mm / mmPerInch
}
