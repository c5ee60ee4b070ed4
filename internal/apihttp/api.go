package apihttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-starter/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-starter/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-starter/internal/log"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

// API implements the public JSON endpoints.
type API struct {
	// conf is held for handlers that need it; none read the secret or the
	// storage locator today.
	conf   cfg.App
	logger log.Logger
}

// NewAPI creates the API handlers
func NewAPI(conf cfg.App, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{
		conf:   conf,
		logger: logger,
	}
}

// RegisterRoutes attaches the endpoints and the JSON 404 fallback to r.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Method(http.MethodGet, "/", httpmw.HandlerFunc(api.HandleHealthCheck))
	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/", httpmw.HandlerFunc(api.HandleHealthCheck))
		r.With(httpmw.MaxBody(MaxBodyBytes)).
			Method(http.MethodPost, "/validation", httpmw.HandlerFunc(api.HandleValidation))
	})
	r.NotFound(HandleNotFound)
	// unknown methods on known paths are reported the same as unknown paths
	r.MethodNotAllowed(HandleNotFound)
}

// HandleHealthCheck answers {"message":"Ok"} and ignores the request.
func (api *API) HandleHealthCheck(w http.ResponseWriter, r *http.Request) error {
	return httpmw.EncodeJSON(w, http.StatusOK, NewHealthCheckResponse())
}

// HandleValidation accepts a body with a non-empty message.
func (api *API) HandleValidation(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	L := log.FromContext(ctx)

	req, rerr := DecodeValidationRequest(r)
	if rerr != nil {
		L.Debug(ctx, "validation request rejected",
			"http.response.status_code", rerr.Status,
			"reason", rerr.Error(),
		)
		return httpmw.EncodeJSON(w, rerr.Status, ErrorsResponse{Errors: rerr.Fields})
	}

	L.Info(ctx, "validation request accepted", "message", *req.Message)
	return httpmw.EncodeJSON(w, http.StatusOK, NewValidationResponse())
}

// HandleNotFound is the JSON fallback for unmatched paths and methods.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	fe := FieldErrors{}
	fe.Add("message", NotFoundMessage)
	httpmw.WriteJSON(w, http.StatusNotFound, ErrorsResponse{Errors: fe})
}
