package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"bogus", INFO},
		{"", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, false)
	l.SetOutput(&buf)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("low-level entries leaked through: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(INFO, true)
	l.SetOutput(&buf)

	l.WithField("id", "abc").Info("started", map[string]interface{}{"pid": 42})

	var e struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if e.Level != "INFO" || e.Message != "started" {
		t.Errorf("got level=%q message=%q", e.Level, e.Message)
	}
	if e.Fields["id"] != "abc" {
		t.Errorf("WithField value missing: %v", e.Fields)
	}
	if e.Fields["pid"] != float64(42) {
		t.Errorf("call-site field missing: %v", e.Fields)
	}
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := New(INFO, false)
	l.SetOutput(&buf)

	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("boom")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("fatal message missing: %q", buf.String())
	}
}
