package core

import (
	"fmt"
	"time"
)

// WindowLabel renders a window length compactly: "45m", "5h", "7d", "1d12h".
func WindowLabel(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes <= 0 {
		return ""
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest != 0 {
		return fmt.Sprintf("%dh%dm", hours, rest)
	}
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	days := hours / 24
	if leftover := hours % 24; leftover != 0 {
		return fmt.Sprintf("%dd%dh", days, leftover)
	}
	return fmt.Sprintf("%dd", days)
}
