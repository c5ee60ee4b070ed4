package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_Healthy(t *testing.T) {
	rec := serve(Handler(Fixed(true, "")), "/-/healthy")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Fatalf("body = %q", got)
	}
}

func TestHandler_Unhealthy(t *testing.T) {
	rec := serve(Handler(Fixed(false, "shutting down")), "/-/ready")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got, want := rec.Body.String(), `{"status":"unavailable","reason":"shutting down"}`; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestHandler_NilProbe(t *testing.T) {
	if rec := serve(Handler(nil), "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (nil probe = healthy)", rec.Code)
	}
}

func TestHandler_PassesRequestContext(t *testing.T) {
	type ctxKey string
	var got any
	p := CheckFunc(func(ctx context.Context) error {
		got = ctx.Value(ctxKey("k"))
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/-/healthy", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey("k"), "v"))
	Handler(p).ServeHTTP(httptest.NewRecorder(), req)

	if got != "v" {
		t.Fatal("request context not passed to probe")
	}
}

func TestRegisterRoutes(t *testing.T) {
	var gate ShutdownGate
	r := chi.NewRouter()
	RegisterRoutes(r, Fixed(true, ""), gate.Probe())

	if rec := serve(r, "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d, want 200", rec.Code)
	}
	if rec := serve(r, "/-/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}

	gate.Drain("shutting down")
	if rec := serve(r, "/-/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready while draining = %d, want 503", rec.Code)
	}
	// liveness is unaffected by draining
	if rec := serve(r, "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("healthy while draining = %d, want 200", rec.Code)
	}
}
