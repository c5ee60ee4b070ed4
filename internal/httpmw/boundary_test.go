package httpmw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

func TestTimeoutError_Message(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "request took longer than the configured 30 second timeout"},
		{time.Second, "request took longer than the configured 1 second timeout"},
	}
	for _, tt := range tests {
		err := &TimeoutError{Timeout: tt.d}
		if got := err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("TimeoutError should match context.DeadlineExceeded")
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"timeout", &TimeoutError{Timeout: 30 * time.Second}, 408, "request took longer than the configured 30 second timeout"},
		{"wrapped timeout", xerrors.Wrap(&TimeoutError{Timeout: 2 * time.Second}, "admission"), 408, "request took longer than the configured 2 second timeout"},
		{"plain", errors.New("disk on fire"), 500, "unhandled internal error: disk on fire"},
		{"context deadline alone is a fault", context.DeadlineExceeded, 500, "unhandled internal error: context deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := Classify(tt.err)
			if status != tt.wantStatus || msg != tt.wantMsg {
				t.Fatalf("Classify = (%d, %q), want (%d, %q)", status, msg, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, map[string]string{"message": "Ok"})

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if got := rec.Body.String(); got != `{"message":"Ok"}` {
		t.Fatalf("body = %q", got)
	}
}

func TestHandlerFunc_ErrorGoesToBoundary(t *testing.T) {
	var got error
	capture := func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		WriteError(w, r, err)
	}

	sentinel := errors.New("store unavailable")
	h := Boundary(capture)(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return sentinel
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !errors.Is(got, sentinel) {
		t.Fatalf("error handler got %v, want sentinel", got)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if want := `{"error":"unhandled internal error: store unavailable"}`; rec.Body.String() != want {
		t.Fatalf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestHandlerFunc_NoBoundaryUsesDefault(t *testing.T) {
	h := HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandlerFunc_NilErrorLeavesResponse(t *testing.T) {
	h := Boundary(nil)(HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Ok"})
		return nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"message":"Ok"}` {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestBoundary_PanicBecomes500(t *testing.T) {
	var got error
	capture := func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		WriteError(w, r, err)
	}

	h := Boundary(capture)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	var pe *xerrors.PanicError
	if !errors.As(got, &pe) {
		t.Fatalf("error handler got %T, want *xerrors.PanicError", got)
	}
	if want := `{"error":"unhandled internal error: nil map write"}`; rec.Body.String() != want {
		t.Fatalf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestEncodeJSON_FailureWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	err := EncodeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatal("expected encoding error")
	}
	if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
		t.Fatal("nothing should be written when encoding fails")
	}
}
