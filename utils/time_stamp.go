package utils

import (
	"math"
	"time"
)

// NowNano returns the current time as nanoseconds since Unix epoch.
func NowNano() int64 {
	return time.Now().UnixNano()
}

// NanoToTime converts a nanosecond Unix timestamp back to time.Time.
func NanoToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// FormatTimestamp converts ns-epoch to a human-friendly string.
func FormatTimestamp(ns int64) string {
	return NanoToTime(ns).Format("2006-01-02_15-04-05.000000000")
}

// FramesFor returns how many whole frames fit in seconds at fps.
// Non-positive inputs yield 0.
func FramesFor(seconds, fps float64) int {
	if seconds <= 0 || fps <= 0 {
		return 0
	}
	// Round away float noise such as 0.5*400 = 199.99999.
	return int(math.Floor(seconds*fps + 1e-9))
}

// MillisToDuration converts a millisecond config value to a time.Duration.
func MillisToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
