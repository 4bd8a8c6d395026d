package utils //nolint:revive // utils is a common and acceptable package name

import (
	"testing"
	"time"
)

func TestPrintDate(t *testing.T) {
	got := PrintDate(time.Date(2026, time.February, 7, 7, 42, 59, 0, time.UTC))
	if got != "07/02/2026 07:42" {
		t.Errorf("expected 07/02/2026 07:42, got %s", got)
	}
}

func TestNormalizeMinute(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 0},
		{1137, 1137},
		{1440, 0},
		{1450, 10},
		{-15, 1425},
		{-1455, 1425},
	}

	for _, tt := range tests {
		if got := NormalizeMinute(tt.in); got != tt.want {
			t.Errorf("NormalizeMinute(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatMinute(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{1137, "18:57"},
		{-15, "23:45"},
		{1439, "23:59"},
	}

	for _, tt := range tests {
		if got := FormatMinute(tt.in); got != tt.want {
			t.Errorf("FormatMinute(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMinuteOfDay(t *testing.T) {
	if got := MinuteOfDay(time.Date(2026, time.March, 21, 18, 57, 59, 0, time.UTC)); got != 1137 {
		t.Errorf("expected 1137, got %d", got)
	}
}
