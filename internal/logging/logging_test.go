package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	got := FromContext(ctx)

	got.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("context logger did not write, got %q", buf.String())
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	logger := FromContext(context.Background())
	// A missing logger must degrade to a no-op, not panic.
	logger.Info().Msg("dropped")
}

func TestWithComponentAndPosition(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	tagged := WithPosition(WithComponent(logger, "settlement"), 42)
	tagged.Info().Msg("tagged")

	out := buf.String()
	if !strings.Contains(out, `"component":"settlement"`) {
		t.Errorf("missing component field: %q", out)
	}
	if !strings.Contains(out, `"position_id":42`) {
		t.Errorf("missing position_id field: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogTickFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogTick(logger, "BTC-USD", 60000.25, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	out := buf.String()
	for _, field := range []string{`"event":"tick"`, `"source":"BTC-USD"`, `"price":60000.25`} {
		if !strings.Contains(out, field) {
			t.Errorf("missing %s in %q", field, out)
		}
	}
}
