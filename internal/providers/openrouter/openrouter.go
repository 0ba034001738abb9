package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

type creditsResponse struct {
	Data *struct {
		TotalCredits float64 `json:"total_credits"`
		TotalUsage   float64 `json:"total_usage"`
	} `json:"data"`
}

type keyResponse struct {
	Data keyData `json:"data"`
}

type keyData struct {
	Label          string   `json:"label"`
	Usage          float64  `json:"usage"`
	Limit          *float64 `json:"limit"`
	LimitRemaining *float64 `json:"limit_remaining"`
	LimitReset     string   `json:"limit_reset"`
	UsageDaily     *float64 `json:"usage_daily"`
	UsageWeekly    *float64 `json:"usage_weekly"`
	UsageMonthly   *float64 `json:"usage_monthly"`
	IsFreeTier     bool     `json:"is_free_tier"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "openrouter",
			Info: core.SourceInfo{
				Name:         "OpenRouter",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "credits_endpoint", "key_endpoint"},
				DocURL:       "https://openrouter.ai/docs/api-reference/limits",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "OPENROUTER_API_KEY"},
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

	var credits creditsResponse
	resp, err := shared.GetJSON(ctx, p.client, baseURL+"/credits", apiKey, nil, &credits)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if credits.Data == nil {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamMalformed, "credits response has no data")), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	shared.ApplyCredits(&r, shared.CreditSnapshot{
		Shape: shared.ShapeCredits,
		Used:  credits.Data.TotalUsage,
		Total: credits.Data.TotalCredits,
	})
	r.IsQuotaBased = true

	// The key endpoint only enriches the record; its failure is not fatal.
	var key keyResponse
	if _, err := shared.GetJSON(ctx, p.client, baseURL+"/key", apiKey, nil, &key); err == nil {
		p.applyKey(&r, key.Data)
	}

	remaining := credits.Data.TotalCredits - credits.Data.TotalUsage
	r.Description = fmt.Sprintf("%.2f Credits Remaining", remaining)
	if r.NextResetTime != nil {
		r.Description += " (Resets: " + r.NextResetTime.Format("Jan 02 15:04") + ")"
	}
	return []core.UsageRecord{r}, nil
}

func (p *Provider) applyKey(r *core.UsageRecord, key keyData) {
	now := p.now()
	r.AccountIdentity = key.Label

	if key.Limit != nil && *key.Limit > 0 {
		reset := core.ResetFromISO(key.LimitReset, now)
		desc := fmt.Sprintf("%.2f", *key.Limit)
		if key.LimitRemaining != nil {
			desc = fmt.Sprintf("%.2f of %.2f left", *key.LimitRemaining, *key.Limit)
		}
		r.Details = append(r.Details, core.UsageDetail{
			Name:          "Spending Limit",
			Description:   desc,
			NextResetTime: reset,
		})
		r.NextResetTime = reset
	}

	freeTier := "No"
	if key.IsFreeTier {
		freeTier = "Yes"
	}
	r.Details = append(r.Details, core.UsageDetail{Name: "Free Tier", Description: freeTier})

	for _, period := range []struct {
		name  string
		value *float64
	}{
		{"Usage (day)", key.UsageDaily},
		{"Usage (week)", key.UsageWeekly},
		{"Usage (month)", key.UsageMonthly},
	} {
		if period.value != nil {
			r.Details = append(r.Details, core.UsageDetail{Name: period.name, Used: fmt.Sprintf("%.2f", *period.value)})
		}
	}
}
