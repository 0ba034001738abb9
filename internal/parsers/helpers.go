package parsers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

type RateLimitGroup struct {
	Name      string
	Limit     *float64
	Remaining *float64
	ResetTime *time.Time
}

func ParseFloat(val string) *float64 {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseResetTime reads reset headers given as Unix seconds or milliseconds,
// RFC 3339 instants, or Go-style relative durations such as "6m0s".
func ParseResetTime(val string, now time.Time) *time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}

	if ts, err := strconv.ParseFloat(val, 64); err == nil {
		if ts > 1_000_000_000 {
			return core.ResetFromUnix(int64(ts), now)
		}
		return core.ResetFromRelative(ts, now)
	}

	if t := core.ResetFromISO(val, now); t != nil {
		return t
	}

	if d, err := time.ParseDuration(val); err == nil {
		return core.ResetFromRelative(d.Seconds(), now)
	}

	return nil
}

func ParseRateLimitGroup(h http.Header, name, limitHeader, remainingHeader, resetHeader string, now time.Time) *RateLimitGroup {
	limit := ParseFloat(h.Get(limitHeader))
	remaining := ParseFloat(h.Get(remainingHeader))
	if limit == nil && remaining == nil {
		return nil
	}
	return &RateLimitGroup{
		Name:      name,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: ParseResetTime(h.Get(resetHeader), now),
	}
}

// RemainingPercent is nil unless both the limit and the remaining count are known.
func (g RateLimitGroup) RemainingPercent() *float64 {
	if g.Limit == nil || g.Remaining == nil {
		return nil
	}
	pct, ok := core.RemainingFromCounts(*g.Limit-*g.Remaining, *g.Limit)
	if !ok {
		return nil
	}
	return &pct
}

// Detail renders the group as a detail row with a used percentage.
func (g RateLimitGroup) Detail() core.UsageDetail {
	d := core.UsageDetail{Name: g.Name, NextResetTime: g.ResetTime}
	if pct := g.RemainingPercent(); pct != nil {
		d.Used = core.FormatPercent(100 - *pct)
		d.Description = core.FormatAmount(*g.Remaining) + " / " + core.FormatAmount(*g.Limit) + " remaining"
	} else if g.Remaining != nil {
		d.Used = core.FormatAmount(*g.Remaining) + " remaining"
	}
	return d
}

func RedactHeaders(headers http.Header, sensitiveKeys ...string) map[string]string {
	sensitive := map[string]bool{
		"authorization":        true,
		"x-api-key":            true,
		"cookie":               true,
		"x-codeium-csrf-token": true,
	}
	for _, k := range sensitiveKeys {
		sensitive[strings.ToLower(k)] = true
	}

	out := make(map[string]string)
	for k, vals := range headers {
		key := strings.ToLower(k)
		val := strings.Join(vals, ", ")
		if sensitive[key] {
			if len(val) > 8 {
				val = val[:4] + "..." + val[len(val)-4:]
			} else {
				val = "****"
			}
		}
		out[k] = val
	}
	return out
}
