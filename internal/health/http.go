package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
)

// Status is the probe response body.
type Status struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Handler answers 200 {"status":"ok"} when p passes (or is nil) and
// 503 {"status":"unavailable","reason":...} otherwise.
func Handler(p Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				httpmw.WriteJSON(w, http.StatusServiceUnavailable, Status{Status: "unavailable", Reason: err.Error()})
				return
			}
		}
		httpmw.WriteJSON(w, http.StatusOK, Status{Status: "ok"})
	}
}

// RegisterRoutes attaches /-/healthy (liveness) and /-/ready (readiness).
func RegisterRoutes(r chi.Router, live, ready Probe) {
	r.Get("/-/healthy", Handler(live))
	r.Get("/-/ready", Handler(ready))
}
