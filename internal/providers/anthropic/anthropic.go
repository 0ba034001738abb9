package anthropic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.anthropic.com/v1"

var rateLimitGroups = []shared.HeaderGroup{
	{Name: "Requests (1m)", Limit: "anthropic-ratelimit-requests-limit", Remaining: "anthropic-ratelimit-requests-remaining", Reset: "anthropic-ratelimit-requests-reset"},
	{Name: "Tokens (1m)", Limit: "anthropic-ratelimit-tokens-limit", Remaining: "anthropic-ratelimit-tokens-remaining", Reset: "anthropic-ratelimit-tokens-reset"},
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "anthropic",
			Info: core.SourceInfo{
				Name:         "Anthropic",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "headers"},
				DocURL:       "https://docs.anthropic.com/en/api/rate-limits",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "ANTHROPIC_API_KEY"},
		}),
		client: shared.NewHTTPClient(),
		now:    time.Now,
	}
}

// Fetch probes the messages endpoint without a body. Anthropic answers a
// valid key with a 4xx request error that still carries the rate-limit
// headers; only 401 and 403 mean the key itself is bad.
func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
	}
	url := shared.ResolveBaseURL(cfg, defaultBaseURL) + "/messages"
	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, url, "", nil, headers)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil && !probeAccepted(err) {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.UsageUnit = "Status"
	r.HTTPStatus = resp.Status
	r.Description = "Connected (Check Dashboard)"
	shared.ApplyRateLimits(&r, resp.Header, rateLimitGroups, p.now())
	return []core.UsageRecord{r}, nil
}

func probeAccepted(err error) bool {
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Kind != core.KindUpstreamRejected {
		return false
	}
	switch fe.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return fe.Status >= 400 && fe.Status < 500
}
