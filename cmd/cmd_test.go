package cmd

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCommandNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{serveCommand().Name, "serve"},
		{ingestCommand().Name, "ingest"},
		{chatCommand().Name, "chat"},
		{versionCommand().Name, "version"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("command name = %q, want %q", tt.got, tt.want)
		}
	}
}
