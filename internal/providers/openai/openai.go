package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider checks key validity against the models endpoint. OpenAI exposes no
// usage API for regular keys, so the record points at the dashboard and
// carries the rate-limit headers as details.
type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "openai",
			Info: core.SourceInfo{
				Name:         "OpenAI",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "headers"},
				DocURL:       "https://platform.openai.com/docs/guides/rate-limits",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "OPENAI_API_KEY"},
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
	if strings.HasPrefix(apiKey, "sk-proj") {
		return p.Unavailable(cfg, core.Errorf(core.KindConfigMissing,
			"project keys (sk-proj-...) cannot read account usage; configure a user key")), nil
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
	shared.ApplyRateLimits(&r, resp.Header, shared.StandardRateLimitGroups, p.now())
	return []core.UsageRecord{r}, nil
}
