package groq

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Groq sends per-minute and per-day windows on every response.
var rateLimitGroups = append([]shared.HeaderGroup{
	{Name: "Requests (1d)", Limit: "x-ratelimit-limit-requests-day", Remaining: "x-ratelimit-remaining-requests-day", Reset: "x-ratelimit-reset-requests-day"},
	{Name: "Tokens (1d)", Limit: "x-ratelimit-limit-tokens-day", Remaining: "x-ratelimit-remaining-tokens-day", Reset: "x-ratelimit-reset-tokens-day"},
}, shared.StandardRateLimitGroups...)

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "groq",
			Info: core.SourceInfo{
				Name:         "Groq",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "headers", "daily_limits"},
				DocURL:       "https://console.groq.com/docs/rate-limits",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "GROQ_API_KEY"},
		}),
		client: shared.NewHTTPClient(),
		now:    time.Now,
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	url := shared.ResolveBaseURL(cfg, defaultBaseURL) + "/models"
	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, url, apiKey, nil, nil)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "Reqs"
	shared.ApplyRateLimits(&r, resp.Header, rateLimitGroups, p.now())
	r.Description = statusMessage(resp.Header, p.now())
	return []core.UsageRecord{r}, nil
}

// statusMessage renders "Remaining: 28/30 RPM, 14000/14400 RPD".
func statusMessage(h http.Header, now time.Time) string {
	var parts []string
	for _, g := range []struct{ label, limit, remaining string }{
		{"RPM", "x-ratelimit-limit-requests", "x-ratelimit-remaining-requests"},
		{"RPD", "x-ratelimit-limit-requests-day", "x-ratelimit-remaining-requests-day"},
	} {
		rlg := parsers.ParseRateLimitGroup(h, g.label, g.limit, g.remaining, "", now)
		if rlg == nil || rlg.Limit == nil || rlg.Remaining == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%.0f/%.0f %s", *rlg.Remaining, *rlg.Limit, g.label))
	}
	if len(parts) == 0 {
		return "Connected"
	}
	return "Remaining: " + strings.Join(parts, ", ")
}
