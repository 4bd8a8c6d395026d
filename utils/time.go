// Package utils provides time formatting helpers for the dusk-lights application.
package utils //nolint:revive // utils is a common and acceptable package name

import (
	"fmt"
	"time"
)

// MinutesPerDay is the length of a civil day in minutes.
const MinutesPerDay = 24 * 60

// PrintDate formats a time as DD/MM/YYYY HH:MM for log lines.
func PrintDate(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// FormatClock formats a time as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format(time.TimeOnly)
}

// FormatDate formats a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// MinuteOfDay returns the minute of the day of t, truncated.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// NormalizeMinute reduces a minute offset into [0, MinutesPerDay).
func NormalizeMinute(m int) int {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return m
}

// FormatMinute formats a minute of the day as HH:MM.
func FormatMinute(m int) string {
	m = NormalizeMinute(m)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
