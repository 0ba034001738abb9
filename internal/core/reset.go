package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MillisecondThreshold separates Unix seconds from Unix milliseconds. Second
// timestamps stay below it until the year 2286.
const MillisecondThreshold = 10_000_000_000

// ResetFromUnix resolves a raw integer timestamp in seconds or milliseconds.
func ResetFromUnix(t int64, now time.Time) *time.Time {
	if t <= 0 {
		return nil
	}
	var at time.Time
	if t >= MillisecondThreshold {
		at = time.UnixMilli(t)
	} else {
		at = time.Unix(t, 0)
	}
	return futureOnly(at, now)
}

func ResetFromISO(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if at, err := time.Parse(layout, s); err == nil {
			return futureOnly(at, now)
		}
	}
	return nil
}

// ResetFromRelative anchors "seconds from now" to now.
func ResetFromRelative(seconds float64, now time.Time) *time.Time {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil
	}
	return futureOnly(now.Add(time.Duration(seconds*float64(time.Second))), now)
}

// ResolveReset accepts the loosely typed values found in decoded JSON:
// numeric timestamps, numeric strings and ISO-8601 strings.
func ResolveReset(v any, now time.Time) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return ResetFromUnix(int64(val), now)
	case int64:
		return ResetFromUnix(val, now)
	case int:
		return ResetFromUnix(int64(val), now)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return ResetFromUnix(int64(n), now)
		}
		return ResetFromISO(val, now)
	case time.Time:
		return futureOnly(val, now)
	}
	return nil
}

// EarliestReset returns the soonest of the given instants.
func EarliestReset(times ...*time.Time) *time.Time {
	var best *time.Time
	for _, t := range times {
		if t == nil {
			continue
		}
		if best == nil || t.Before(*best) {
			best = t
		}
	}
	return cloneTime(best)
}

func futureOnly(at, now time.Time) *time.Time {
	if !at.After(now) {
		return nil
	}
	local := at.Local()
	return &local
}
