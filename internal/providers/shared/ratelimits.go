package shared

import (
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
)

// HeaderGroup names the three headers describing one rate-limit window.
type HeaderGroup struct {
	Name      string
	Limit     string
	Remaining string
	Reset     string
}

// StandardRateLimitGroups are the x-ratelimit-* headers sent by OpenAI-compatible APIs.
var StandardRateLimitGroups = []HeaderGroup{
	{Name: "Requests (1m)", Limit: "x-ratelimit-limit-requests", Remaining: "x-ratelimit-remaining-requests", Reset: "x-ratelimit-reset-requests"},
	{Name: "Tokens (1m)", Limit: "x-ratelimit-limit-tokens", Remaining: "x-ratelimit-remaining-tokens", Reset: "x-ratelimit-reset-tokens"},
}

// ApplyRateLimits adds one detail row per window present in h and records
// the tightest window as the remaining percentage. It reports whether any
// window was found.
func ApplyRateLimits(r *core.UsageRecord, h http.Header, groups []HeaderGroup, now time.Time) bool {
	var windows []core.Window
	var resets []*time.Time
	for _, g := range groups {
		rlg := parsers.ParseRateLimitGroup(h, g.Name, g.Limit, g.Remaining, g.Reset, now)
		if rlg == nil {
			continue
		}
		r.Details = append(r.Details, rlg.Detail())
		windows = append(windows, core.Window{Name: g.Name, Remaining: rlg.RemainingPercent()})
		resets = append(resets, rlg.ResetTime)
	}
	if len(windows) == 0 {
		return false
	}
	if pct, ok := core.BlendWindows(windows); ok {
		r.PercentageRemaining = pct
	}
	r.NextResetTime = core.EarliestReset(resets...)
	return true
}
