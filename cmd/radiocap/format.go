package main

import (
	"fmt"
	"math"
	"time"

	"radiocap/internal/api"
)

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	return (time.Duration(math.Round(seconds)) * time.Second).String()
}

// formatWhen renders an API timestamp in local time; unparseable values pass
// through unchanged.
func formatWhen(value string) string {
	if value == "" {
		return "-"
	}
	ts, err := api.ParseTime(value)
	if err != nil || ts.IsZero() {
		return value
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
