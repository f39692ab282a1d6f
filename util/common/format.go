package common

import (
	"fmt"
	"time"
)

func FormatTraffic(trafficBytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	unitIndex := 0
	size := float64(trafficBytes)

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}
	return fmt.Sprintf("%.2f%s", size, units[unitIndex])
}

// FormatExpiry renders a unix-millisecond expiry, with 0 meaning never.
func FormatExpiry(expiryMs int64) string {
	if expiryMs == 0 {
		return "never"
	}
	return time.UnixMilli(expiryMs).Format("2006-01-02 15:04")
}

func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	day := 24 * time.Hour
	if d >= day {
		return fmt.Sprintf("%dd %s", d/day, (d % day).String())
	}
	return d.String()
}
