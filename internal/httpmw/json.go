package httpmw

import (
	"encoding/json"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// ErrorBody is the envelope for pipeline-level failures.
type ErrorBody struct {
	Error string `json:"error"`
}

// EncodeJSON writes v as the complete response body with the given status.
// An encoding failure is returned before anything is written, so the caller
// can still report it.
func EncodeJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return xerrors.Wrapf(err, "encode %T response", v)
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// the client may be gone; nothing useful to do with a write error
	_, _ = w.Write(b)
	return nil
}

// WriteJSON is EncodeJSON for values that always encode.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if err := EncodeJSON(w, status, v); err != nil {
		http.Error(w, `{"error":"unhandled internal error: response encoding failed"}`, http.StatusInternalServerError)
	}
}
