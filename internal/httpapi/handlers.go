package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/hints"
	"github.com/alnah/go-web2pdf/internal/logger"
	"github.com/alnah/go-web2pdf/internal/pdfinfo"
)

var errTrailingData = errors.New("unexpected data after JSON body")

type handlers struct {
	renderer     Renderer
	stats        StatsSource
	log          *logger.Logger
	maxBodyBytes int64
	retryAfter   time.Duration
}

// htmlRequest is the body of POST /pdf/html.
type htmlRequest struct {
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	Orientation string `json:"orientation"`
	Filename    string `json:"filename"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Pool   web2pdf.PoolStats `json:"pool"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.stats != nil {
		resp.Pool = h.stats.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// fromURL handles GET /pdf/url?url=...
func (h *handlers) fromURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("url"))
	if target == "" {
		writeMessage(w, http.StatusBadRequest, "url is required.")
		return
	}

	opts, err := h.jobOptions(q.Get("orientation"), q.Get("filename"), q.Get("wait"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	h.render(w, r, web2pdf.NewURLJob(target, opts...))
}

// fromContent handles POST /pdf/content with a urlencoded or multipart form.
func (h *handlers) fromContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := parseForm(r, h.maxBodyBytes); err != nil {
		h.badBody(w, err)
		return
	}

	html := r.PostFormValue("html")
	if html == "" {
		writeMessage(w, http.StatusBadRequest, "html is required.")
		return
	}

	opts, err := h.jobOptions(r.PostFormValue("orientation"), r.PostFormValue("filename"), "")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	h.render(w, r, web2pdf.NewContentJob(html, r.PostFormValue("css"), opts...))
}

// fromJSON handles POST /pdf/html with a JSON body.
func (h *handlers) fromJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req htmlRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badBody(w, err)
		return
	}
	if req.HTML == "" {
		writeMessage(w, http.StatusBadRequest, "html is required.")
		return
	}

	opts, err := h.jobOptions(req.Orientation, req.Filename, "")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	h.render(w, r, web2pdf.NewContentJob(req.HTML, req.CSS, opts...))
}

// jobOptions parses the request parameters shared by all routes. An empty
// wait leaves the renderer default in place.
func (h *handlers) jobOptions(orientation, filename, wait string) ([]web2pdf.JobOption, error) {
	o, err := web2pdf.ParseOrientation(orientation)
	if err != nil {
		return nil, err
	}
	wc, err := web2pdf.ParseWaitCondition(wait)
	if err != nil {
		return nil, err
	}
	return []web2pdf.JobOption{
		web2pdf.WithOrientation(o),
		web2pdf.WithOutputName(strings.TrimSuffix(strings.TrimSpace(filename), ".pdf")),
		web2pdf.WithWaitUntil(wc),
	}, nil
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, job web2pdf.Job) {
	res, err := h.renderer.Render(r.Context(), job)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment;filename="+res.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	if n, err := pdfinfo.PageCount(res.PDF); err == nil {
		w.Header().Set(pagesHeader, strconv.Itoa(n))
	} else {
		h.log.FromContext(r.Context()).Debug("page count unavailable", "error", err)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.PDF)
}

// renderError maps render failures to responses. Only validation messages
// are shown to the client.
func (h *handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch web2pdf.KindOf(err) {
	case web2pdf.KindValidation:
		writeMessage(w, http.StatusBadRequest, validationMessage(err))
	case web2pdf.KindServiceBusy:
		h.log.FromContext(r.Context()).Warn("render request rejected",
			"kind", web2pdf.KindOf(err).String(),
			"error", err.Error()+timeoutHint(err),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		writeMessage(w, http.StatusServiceUnavailable, msgBusy)
	default:
		h.log.FromContext(r.Context()).Error("render request failed",
			"kind", web2pdf.KindOf(err).String(),
			"error", err.Error()+timeoutHint(err),
		)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// timeoutHint names the setting to raise when err is a timeout.
func timeoutHint(err error) string {
	if !web2pdf.IsTimeout(err) {
		return ""
	}
	switch web2pdf.KindOf(err) {
	case web2pdf.KindEngineLaunch:
		return hints.ForTimeout("launch-timeout")
	case web2pdf.KindServiceBusy:
		return hints.ForTimeout("acquire-timeout")
	default:
		return hints.ForTimeout("operation-timeout")
	}
}

// validationMessage strips the operation prefix from a validation error.
func validationMessage(err error) string {
	var e *web2pdf.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func (h *handlers) badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes.", tooLarge.Limit))
		return
	}
	writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// parseForm accepts both urlencoded and multipart bodies.
func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}
