package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareLogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Middleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/quotes/1/schedule", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-42" {
		t.Fatalf("handler log missing request id: %v", entries[0].ContextMap())
	}
	fields := entries[1].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("expected status 418, got %v", fields["status"])
	}
	if fields["path"] != "/quotes/1/schedule" {
		t.Fatalf("unexpected path %v", fields["path"])
	}
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	h := Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected X-Request-Id header to be set")
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if FromContext(context.Background()) != zap.L() {
		t.Fatalf("expected global logger")
	}
}

func TestMaskDSN(t *testing.T) {
	tests := map[string]string{
		"host=db user=u password=secret dbname=x": "host=db user=u password=*** dbname=x",
		"postgres://u:secret@db:5432/x":           "postgres://u:***@db:5432/x",
		"echeancier.db":                           "echeancier.db",
	}
	for in, want := range tests {
		if got := MaskDSN(in); got != want {
			t.Errorf("MaskDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewParsesLevel(t *testing.T) {
	l, err := New("warn", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if _, err := New("bogus", true); err != nil {
		t.Fatalf("unknown level should fall back to info: %v", err)
	}
}
