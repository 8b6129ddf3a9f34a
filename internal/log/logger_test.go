package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewJSONHandler(&buf, nil), Component: ComponentDataset})

	logger.Info("loaded", FieldRows, 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentDataset {
		t.Fatalf("component = %v", rec[FieldComponent])
	}
	if rec[FieldRows] != float64(3) {
		t.Fatalf("rows = %v", rec[FieldRows])
	}

	buf.Reset()
	logger.WithComponent(ComponentChart).Warn("slow")
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec[FieldComponent] != ComponentChart {
		t.Fatalf("component after WithComponent = %v", rec[FieldComponent])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}

	want := Discard()
	if got := FromContext(NewContext(context.Background(), want)); got != want {
		t.Fatalf("logger not carried by context")
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewJSONHandler(&buf, nil), Component: ComponentHTTP}))
	req := httptest.NewRequest("GET", "/api/brands/top?n=3", nil)

	sl.LogHTTPEnd(context.Background(), req, "req_1", 503, 12, "127.0.0.1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["level"] != "ERROR" {
		t.Fatalf("level = %v", rec["level"])
	}
	if rec[FieldStatusCode] != float64(503) || rec[FieldSuccess] != false {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLogFieldsWithError(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error must not add a field")
	}
	f.WithError(errors.New("boom")).WithRun("run-1", "Disney")
	if f[FieldError] != "boom" || f[FieldRunID] != "run-1" || f[FieldStudio] != "Disney" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("ToSlice length mismatch")
	}
}
