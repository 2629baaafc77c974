package cmd

import (
	"log/slog"
	"testing"

	"github.com/phonewise/phonewise/internal/catalog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveSelection(t *testing.T) {
	t.Parallel()

	cards := []catalog.Phone{
		{ID: "pixel-8a", Name: "Pixel 8a"},
		{ID: "oneplus-12r", Name: "OnePlus 12R"},
	}

	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{"first card", "1", "pixel-8a", false},
		{"second card", "2", "oneplus-12r", false},
		{"zero", "0", "", true},
		{"out of range", "3", "", true},
		{"raw id passes through", "galaxy-s24", "galaxy-s24", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveSelection(tt.arg, cards)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveSelection(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveSelection(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}
