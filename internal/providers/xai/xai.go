package xai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.x.ai/v1"

type apiKeyResponse struct {
	Name             string   `json:"name"`
	TeamID           string   `json:"team_id"`
	RemainingBalance *float64 `json:"remaining_balance"`
	SpentBalance     *float64 `json:"spent_balance"`
	TotalGranted     *float64 `json:"total_granted"`
}

// Provider reads the key's prepaid balance from /api-key and the rate-limit
// headers of /models.
type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "xai",
			Info: core.SourceInfo{
				Name:         "xAI",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "headers", "api_key_balance"},
				DocURL:       "https://docs.x.ai/docs",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "XAI_API_KEY"},
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
	baseURL := shared.ResolveBaseURL(cfg, defaultBaseURL)

	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, baseURL+"/models", apiKey, nil, nil)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "USD"
	r.Description = "Connected"
	shared.ApplyRateLimits(&r, resp.Header, shared.StandardRateLimitGroups, p.now())

	var key apiKeyResponse
	if _, err := shared.GetJSON(ctx, p.client, baseURL+"/api-key", apiKey, nil, &key); err != nil {
		log.Printf("[xai] api-key lookup: %v", err)
		return []core.UsageRecord{r}, nil
	}
	r.AccountIdentity = key.Name
	if key.RemainingBalance != nil {
		r.AmountAvailable = *key.RemainingBalance
		r.Description = fmt.Sprintf("$%.2f remaining", *key.RemainingBalance)
		if key.SpentBalance != nil {
			r.AmountUsed = *key.SpentBalance
		}
		if key.TotalGranted != nil && *key.TotalGranted > 0 {
			r.AmountAvailable = *key.TotalGranted
			r.DisplayAsFraction = true
			r.Details = append(r.Details, core.UsageDetail{
				Name:        core.CreditsTag + " Balance",
				Used:        fmt.Sprintf("$%.2f", *key.TotalGranted-*key.RemainingBalance),
				Description: fmt.Sprintf("$%.2f of $%.2f left", *key.RemainingBalance, *key.TotalGranted),
			})
		}
	}
	return []core.UsageRecord{r}, nil
}
