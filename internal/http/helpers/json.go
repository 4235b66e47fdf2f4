package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
)

// WriteError serializes an error as the standard JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	apperrors.WriteError(w, err)
}

// WriteJSON: standard JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes JSON leniently (unknown fields do NOT fail).
// Validates Content-Type and caps the body at 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, apperrors.ErrInvalidJSON.WithDetail("Content-Type must be application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, apperrors.ErrInvalidJSON)
		return false
	}
	return true
}
