package synthetic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultQuotasURL = "https://api.synthetic.new/v2/quotas"

// Provider reads the subscription quota of a Synthetic key. The endpoint is
// taken from the config, then from opencode's providers.json, then the
// public default.
type Provider struct {
	providerbase.Base
	client        *http.Client
	now           func() time.Time
	providerFiles []string
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "synthetic",
			Info: core.SourceInfo{
				Name:         "Synthetic",
				Plan:         core.PlanCoding,
				Capabilities: []string{"http", "subscription"},
				DocURL:       "https://synthetic.new",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "SYNTHETIC_API_KEY"},
		}),
		client:        shared.NewHTTPClient(),
		now:           time.Now,
		providerFiles: credentials.ProvidersFilePaths(),
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, p.quotasURL(cfg), apiKey, nil, nil)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	snap, err := shared.ParseSubscription(resp.Body, p.now())
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	shared.ApplyCredits(&r, snap)
	return []core.UsageRecord{r}, nil
}

func (p *Provider) quotasURL(cfg core.SourceConfig) string {
	url := cfg.BaseURL
	if url == "" {
		url = credentials.LookupProviderURL(p.SourceID(cfg), p.providerFiles...)
	}
	if url == "" {
		return defaultQuotasURL
	}
	url = strings.TrimRight(url, "/")
	if strings.Contains(url, "/quotas") {
		return url
	}
	return url + "/v2/quotas"
}
