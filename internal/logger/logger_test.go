package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("dataset loaded")

	if !strings.Contains(buf.String(), "dataset loaded") {
		t.Errorf("Expected output to contain 'dataset loaded', got: %s", buf.String())
	}
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantErr   bool
		wantLevel zerolog.Level
		wantJSON  bool
	}{
		{name: "json debug", level: "debug", format: FormatJSON, wantLevel: zerolog.DebugLevel, wantJSON: true},
		{name: "console warn", level: "warn", format: FormatConsole, wantLevel: zerolog.WarnLevel},
		{name: "empty level defaults to info", level: "", format: FormatJSON, wantLevel: zerolog.InfoLevel, wantJSON: true},
		{name: "unknown level", level: "loud", format: FormatJSON, wantErr: true},
		{name: "unknown format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log, err := configure(buf, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("configure() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}

			log.WithLevel(tt.wantLevel).Str("region", "North").Msg("query")
			out := buf.String()
			if !strings.Contains(out, "North") {
				t.Errorf("expected field in output, got: %s", out)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v: %s", got, tt.wantJSON, out)
			}
		})
	}
}

func TestConfigure_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := configure(buf, "warn", FormatJSON)
	if err != nil {
		t.Fatalf("configure() error = %v", err)
	}

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got: %s", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	ctxWithLogger := WithContext(context.Background(), New())

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"job_id": "123",
		"weeks":  12,
	})

	log.Info().Msg("forecast")

	out := buf.String()
	if !strings.Contains(out, `"job_id":"123"`) {
		t.Errorf("Expected output to contain job_id field, got: %s", out)
	}
	if !strings.Contains(out, `"weeks":12`) {
		t.Errorf("Expected output to contain weeks field, got: %s", out)
	}
}
