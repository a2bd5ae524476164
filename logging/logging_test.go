package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/e7canasta/snapcam/logging"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	log.Info().Str("component", "test").Msg("hello")

	line := buf.String()
	if !strings.Contains(line, `"component":"test"`) || !strings.Contains(line, `"message":"hello"`) {
		t.Errorf("log line not structured JSON: %q", line)
	}
}

// TestLevelFilter validates that events below the configured level are
// suppressed.
func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Config{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info event passed a warn-level logger")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn event suppressed")
	}
}

func TestBadLevelRejected(t *testing.T) {
	if _, err := logging.New(logging.Config{Level: "loud"}); err == nil {
		t.Fatal("New() accepted an unknown level")
	}
}
