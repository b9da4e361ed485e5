package internal

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"error": LogLevelError,
		"WARN":  LogLevelWarn,
		"":      LogLevelInfo,
		"bogus": LogLevelInfo,
		"debug": LogLevelDebug,
		"TRACE": LogLevelTrace,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLoggerComponentPrefixAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	flags := log.Flags()
	log.SetFlags(0)
	defer log.SetFlags(flags)

	logger := NewLogger(LogLevelInfo).WithComponent("Calendarization")
	logger.Info("grid has %d days", 59)
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "[INFO] [Calendarization] grid has 59 days") {
		t.Errorf("unexpected log output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
}
