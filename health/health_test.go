package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthzAlwaysOK(t *testing.T) {
	failing := Checker{Name: "store", Check: func(context.Context) error { return errors.New("down") }}
	code, body := serve(t, New(failing), "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("got %d %+v", code, body)
	}
}

func TestReadyzAllPass(t *testing.T) {
	ok := func(context.Context) error { return nil }
	code, body := serve(t, New(Checker{Name: "store", Check: ok}, Checker{Name: "model", Check: ok}), "/readyz")
	if code != http.StatusOK || body.Checks["store"] != "ok" || body.Checks["model"] != "ok" {
		t.Fatalf("got %d %+v", code, body)
	}
}

func TestReadyzRequiredFailure(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(context.Context) error { return errors.New("locked") }},
		Checker{Name: "model", Check: func(context.Context) error { return nil }},
	)
	code, body := serve(t, h, "/readyz")
	if code != http.StatusServiceUnavailable || body.Status != "fail" {
		t.Fatalf("got %d %+v", code, body)
	}
	if body.Checks["store"] != "fail: locked" {
		t.Errorf("store check = %q", body.Checks["store"])
	}
}

func TestReadyzOptionalFailureStaysReady(t *testing.T) {
	h := New(Checker{
		Name:     "sentiment",
		Optional: true,
		Check:    func(context.Context) error { return errors.New("model not loaded") },
	})
	code, body := serve(t, h, "/readyz")
	if code != http.StatusOK {
		t.Fatalf("got %d %+v", code, body)
	}
	if body.Checks["sentiment"] != "degraded: model not loaded" {
		t.Errorf("sentiment check = %q", body.Checks["sentiment"])
	}
}
