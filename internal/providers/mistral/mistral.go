package mistral

import (
	"context"
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.mistral.ai/v1"

// Mistral sends either the unprefixed ratelimit-* headers or the x-ratelimit-*
// variants depending on the gateway.
var rateLimitGroups = append([]shared.HeaderGroup{
	{Name: "Requests", Limit: "ratelimit-limit", Remaining: "ratelimit-remaining", Reset: "ratelimit-reset"},
}, shared.StandardRateLimitGroups...)

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "mistral",
			Info: core.SourceInfo{
				Name:         "Mistral AI",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "headers"},
				DocURL:       "https://docs.mistral.ai/getting-started/models/",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "MISTRAL_API_KEY"},
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
	r.UsageUnit = "Status"
	r.HTTPStatus = resp.Status
	r.Description = "Connected (Check Dashboard)"
	shared.ApplyRateLimits(&r, resp.Header, rateLimitGroups, p.now())
	return []core.UsageRecord{r}, nil
}
