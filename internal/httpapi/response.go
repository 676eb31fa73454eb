package httpapi

import (
	"encoding/json"
	"net/http"
)

// Client-facing messages. Engine details never reach the response body.
const (
	msgBusy     = "Service is busy. Please try again later."
	msgInternal = "Something went wrong. Please try again later."
)

// pagesHeader carries the page count of a rendered document.
const pagesHeader = "X-PDF-Pages"

// messageBody is the JSON shape of every error response.
type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
