package web2pdf

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// SourceKind tells where a job's page content comes from.
type SourceKind int

// Source kinds.
const (
	SourceURL SourceKind = iota + 1
	SourceContent
)

func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceContent:
		return "content"
	}
	return "unknown"
}

// Orientation is the page orientation of the rendered PDF.
type Orientation string

// Orientation constants.
const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// ParseOrientation is case-insensitive. Empty input means portrait.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OrientationPortrait):
		return OrientationPortrait, nil
	case string(OrientationLandscape):
		return OrientationLandscape, nil
	}
	return "", fmt.Errorf("%w: %q (must be portrait or landscape)", ErrInvalidOrientation, s)
}

// WaitCondition decides when a navigated page counts as loaded.
type WaitCondition string

// Wait conditions.
const (
	WaitLoad             WaitCondition = "load"             // all resources loaded
	WaitDOMContentLoaded WaitCondition = "domcontentloaded" // DOM parsed
	WaitNetworkIdle      WaitCondition = "networkidle"      // no network activity
)

// ParseWaitCondition is case-insensitive. Empty input returns "" so the
// renderer default applies.
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch w := WaitCondition(strings.ToLower(strings.TrimSpace(s))); w {
	case "", WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q (must be load, domcontentloaded or networkidle)", ErrInvalidWaitCondition, s)
}

// DefaultOutputName is used when a job does not name its output.
const DefaultOutputName = "output"

// maxOutputNameLength keeps Content-Disposition headers reasonable.
const maxOutputNameLength = 200

// Job describes one rendering request. Build it with NewURLJob or
// NewContentJob; the value is not modified after construction.
type Job struct {
	Source      SourceKind
	URL         string        // set iff Source == SourceURL
	HTML        string        // set iff Source == SourceContent
	CSS         string        // optional, content jobs only
	Orientation Orientation   // default portrait
	OutputName  string        // default "output", without extension
	WaitUntil   WaitCondition // empty: renderer default
}

// JobOption customizes a Job at construction.
type JobOption func(*Job)

// WithOrientation sets the page orientation.
func WithOrientation(o Orientation) JobOption {
	return func(j *Job) {
		j.Orientation = o
	}
}

// WithOutputName sets the output file name, without the .pdf extension.
// An empty name keeps the default.
func WithOutputName(name string) JobOption {
	return func(j *Job) {
		if name != "" {
			j.OutputName = name
		}
	}
}

// WithWaitUntil sets the load condition for URL jobs.
func WithWaitUntil(w WaitCondition) JobOption {
	return func(j *Job) {
		j.WaitUntil = w
	}
}

// NewURLJob builds a job that renders the page at rawURL.
func NewURLJob(rawURL string, opts ...JobOption) Job {
	return newJob(Job{Source: SourceURL, URL: rawURL}, opts)
}

// NewContentJob builds a job that renders literal HTML, styled with css if non-empty.
func NewContentJob(html, css string, opts ...JobOption) Job {
	return newJob(Job{Source: SourceContent, HTML: html, CSS: css}, opts)
}

func newJob(j Job, opts []JobOption) Job {
	j.Orientation = OrientationPortrait
	j.OutputName = DefaultOutputName
	for _, opt := range opts {
		opt(&j)
	}
	return j
}

// Landscape reports whether the job renders in landscape orientation.
func (j Job) Landscape() bool {
	return j.Orientation == OrientationLandscape
}

// Filename returns the attachment name of the rendered document.
func (j Job) Filename() string {
	name := j.OutputName
	if name == "" {
		name = DefaultOutputName
	}
	return name + ".pdf"
}

// Validate checks that exactly one source is populated and matches Source.
// Failures are KindValidation errors.
func (j Job) Validate() error {
	if err := j.validate(); err != nil {
		return &Error{Kind: KindValidation, Op: "validate", Err: err}
	}
	return nil
}

func (j Job) validate() error {
	switch j.Source {
	case SourceURL:
		if j.URL == "" {
			return fmt.Errorf("%w: url is required", ErrMissingSource)
		}
		if j.HTML != "" {
			return ErrConflictingSource
		}
		if err := validateURL(j.URL); err != nil {
			return err
		}
	case SourceContent:
		if j.HTML == "" {
			return fmt.Errorf("%w: html is required", ErrMissingSource)
		}
		if j.URL != "" {
			return ErrConflictingSource
		}
	default:
		return fmt.Errorf("%w: unknown source kind %d", ErrMissingSource, j.Source)
	}

	switch j.Orientation {
	case "", OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, j.Orientation)
	}

	if _, err := ParseWaitCondition(string(j.WaitUntil)); err != nil {
		return err
	}

	return validateOutputName(j.OutputName)
}

// validateURL accepts absolute http(s) URLs only.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q (scheme must be http or https)", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q (missing host)", ErrInvalidURL, raw)
	}
	return nil
}

// validateOutputName rejects names that could escape a header value or a directory.
func validateOutputName(name string) error {
	if len(name) > maxOutputNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidOutputName, maxOutputNameLength)
	}
	if strings.ContainsAny(name, `/\"`) {
		return fmt.Errorf("%w: %q contains a path separator or quote", ErrInvalidOutputName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidOutputName, name)
		}
	}
	return nil
}

// Result is a successful render.
type Result struct {
	PDF      []byte
	Filename string
	HandleID string
	Duration time.Duration
}
