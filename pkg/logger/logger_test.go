// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning alias", "warning", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"fatal", "fatal", zerolog.FatalLevel},
		{"panic", "panic", zerolog.PanicLevel},
		{"invalid defaults to info", "invalid", zerolog.InfoLevel},
		{"uppercase", "DEBUG", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, _ := parseLogLevel(tt.level)
			if level != tt.expected {
				t.Errorf("parseLogLevel(%s) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	Initialize("info")
	if Get() == nil {
		t.Error("Get() returned nil logger")
	}
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	Initialize("info")
	SetOutput(&buf)

	Info().Str("device_id", "1").Msg("snapshot cached")

	output := buf.String()
	if !strings.Contains(output, "snapshot cached") {
		t.Errorf("SetOutput() should redirect output, got: %s", output)
	}
	if !strings.Contains(output, "device_id") {
		t.Errorf("output should contain structured field, got: %s", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Initialize("warn")
	SetOutput(&buf)

	Info().Msg("filtered message")
	if strings.Contains(buf.String(), "filtered message") {
		t.Error("info message should be filtered at warn level")
	}

	Warn().Msg("visible message")
	if !strings.Contains(buf.String(), "visible message") {
		t.Error("warn message should pass at warn level")
	}
}

func TestWith(t *testing.T) {
	Initialize("info")

	var buf bytes.Buffer
	child := With().Str("component", "resolver").Logger().Output(&buf)
	child.Info().Msg("child logger works")

	if !strings.Contains(buf.String(), "component") {
		t.Errorf("child logger should carry its fields, got: %s", buf.String())
	}
}
