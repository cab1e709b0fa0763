package logging

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Info("search finished", "roots", 12, "label", "Kraken(USDT) -> Binance(USDT)", "profit", 0.0123)

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO]  ") {
		t.Errorf("Expected info prefix, got %q", line)
	}
	for _, want := range []string{
		"search finished | ",
		"roots=12",
		`label="Kraken(USDT) -> Binance(USDT)"`,
		"profit=0.012300",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
}

func TestCompactHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil)).With("component", "runner").WithGroup("graph")

	log.Info("loaded", "nodes", 3)

	line := buf.String()
	if !strings.Contains(line, "component=runner") {
		t.Errorf("Expected accumulated attrs in output, got %q", line)
	}
	if !strings.Contains(line, "graph.nodes=3") {
		t.Errorf("Expected grouped key, got %q", line)
	}
}

func TestCompactHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "[WARN]  ") {
		t.Errorf("Expected warn line, got %q", buf.String())
	}
}

func TestCompactHandler_ShortIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil))

	log.Info("run", "runID", "0123456789abcdef", "requestID", "fedcba9876543210")

	if !strings.Contains(buf.String(), "run=01234567 ") {
		t.Errorf("Expected shortened run id, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "req=fedcba98") {
		t.Errorf("Expected shortened request id, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		verbosity string
		count     int
		want      slog.Level
	}{
		{"", 0, slog.LevelInfo},
		{"", 1, slog.LevelDebug},
		{"", 3, LevelTrace},
		{"DEBUG", 0, slog.LevelDebug},
		{"warning", 2, slog.LevelWarn},
		{"quiet", 0, slog.LevelError},
		{"trace", 0, LevelTrace},
		{"nonsense", 0, slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.verbosity, tt.count); got != tt.want {
			t.Errorf("ParseLevel(%q, %d) = %v, expected %v", tt.verbosity, tt.count, got, tt.want)
		}
	}
}

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nopWriter{})

	New("watcher").Info("started")

	if !strings.Contains(buf.String(), "component=watcher") {
		t.Errorf("Expected component tag, got %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nopWriter{})

	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc" {
		t.Errorf("Expected request id abc in context, got %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("Expected request id echoed in header, got %q", rec.Header().Get("X-Request-ID"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "request failed") {
		t.Errorf("Expected failed request to be logged, got %q", buf.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("Expected a generated uuid, got %q", rec.Header().Get("X-Request-ID"))
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
