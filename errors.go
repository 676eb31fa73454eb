package web2pdf

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors, one per failure kind. Use errors.Is to match them.
var (
	ErrValidation     = errors.New("invalid render job")
	ErrEngineLaunch   = errors.New("rendering engine failed to start")
	ErrNavigation     = errors.New("failed to load page")
	ErrStyleInjection = errors.New("stylesheet rejected by engine")
	ErrRender         = errors.New("PDF generation failed")
	ErrServiceBusy    = errors.New("no render capacity available")

	// ErrPoolTimeout is returned when Acquire gives up waiting for capacity.
	// It is the same value as ErrServiceBusy.
	ErrPoolTimeout = ErrServiceBusy

	// ErrTimeout matches any failure caused by an elapsed deadline.
	ErrTimeout = errors.New("operation timed out")

	ErrPoolClosed = errors.New("render pool is closed")
	ErrHandleDead = errors.New("render handle is dead")
	ErrNotPDF     = errors.New("engine output is not a PDF document")
)

// Job validation errors. They are always wrapped in a KindValidation *Error.
var (
	ErrMissingSource        = errors.New("job has no content source")
	ErrConflictingSource    = errors.New("job has both URL and HTML set")
	ErrInvalidURL           = errors.New("invalid URL")
	ErrInvalidOrientation   = errors.New("invalid orientation")
	ErrInvalidWaitCondition = errors.New("invalid wait condition")
	ErrInvalidOutputName    = errors.New("invalid output name")
)

// Kind classifies render failures.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindEngineLaunch
	KindNavigation
	KindStyleInjection
	KindRender
	KindServiceBusy
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindValidation:     "validation",
	KindEngineLaunch:   "engine_launch",
	KindNavigation:     "navigation",
	KindStyleInjection: "style_injection",
	KindRender:         "render",
	KindServiceBusy:    "service_busy",
}

// String returns a stable snake_case name, suitable for log fields and metric labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindEngineLaunch:
		return ErrEngineLaunch
	case KindNavigation:
		return ErrNavigation
	case KindStyleInjection:
		return ErrStyleInjection
	case KindRender:
		return ErrRender
	case KindServiceBusy:
		return ErrServiceBusy
	}
	return nil
}

// Error is the only error type that leaves the package for render failures.
// The underlying engine error stays reachable through Unwrap for logging.
type Error struct {
	Kind    Kind
	Op      string // "start", "navigate", "set_content", "apply_stylesheet", "render", "acquire", "validate"
	Timeout bool
	Err     error
}

// newError classifies err under kind. A nil err yields nil.
func newError(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout),
		Err:     err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("render failed")
	}
	if e.Timeout {
		b.WriteString(" (timeout)")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e.Kind, and ErrTimeout for timeout failures.
func (e *Error) Is(target error) bool {
	if target == ErrTimeout {
		return e.Timeout
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether err was caused by an elapsed deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Healthy reports whether a handle that produced err may be reused.
// Launch and render failures, and any timeout, mark the engine suspect.
// Page-level navigation errors and stylesheet rejections do not.
func Healthy(err error) bool {
	if err == nil {
		return true
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Timeout {
		return false
	}
	switch e.Kind {
	case KindNavigation, KindStyleInjection, KindValidation, KindServiceBusy:
		return true
	default:
		return false
	}
}
