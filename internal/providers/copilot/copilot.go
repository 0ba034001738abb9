// Package copilot reports GitHub Copilot access for a GitHub token:
//
//   - GET /user                        identifies the account
//   - GET /copilot_internal/v2/token   names the Copilot plan (sku)
//   - GET /rate_limit                  hourly API limits, plus copilot_chat when present
//
// The token comes from the config, then GITHUB_TOKEN, then `gh auth token`.
package copilot

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/discovery"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.github.com"

var skuNames = map[string]string{
	"copilot_individual":   "Copilot Individual",
	"copilot_business":     "Copilot Business",
	"copilot_enterprise":   "Copilot Enterprise",
	"free_limited_copilot": "Copilot Free",
}

type ghUser struct {
	Login string `json:"login"`
}

type copilotToken struct {
	SKU       string `json:"sku"`
	ExpiresAt int64  `json:"expires_at"`
}

type rateResource struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Used      int   `json:"used"`
	Reset     int64 `json:"reset"`
}

type ghRateLimit struct {
	Resources map[string]rateResource `json:"resources"`
}

type Provider struct {
	providerbase.Base
	client  *http.Client
	now     func() time.Time
	ghToken func(ctx context.Context) (string, error)
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "github-copilot",
			Info: core.SourceInfo{
				Name:         "GitHub Copilot",
				Plan:         core.PlanCoding,
				Capabilities: []string{"http", "gh_cli", "rate_limit_check"},
				DocURL:       "https://docs.github.com/en/rest/rate-limit",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeCLI, APIKeyEnv: "GITHUB_TOKEN"},
		}),
		client:  shared.NewHTTPClient(),
		now:     time.Now,
		ghToken: func(ctx context.Context) (string, error) {
			return discovery.RunCommand(ctx, "gh", "auth", "token")
		},
	}
}

// resolveToken returns the token and a label describing where it came from.
func (p *Provider) resolveToken(ctx context.Context, cfg core.SourceConfig) (string, string) {
	if key := cfg.ResolveAPIKey(); key != "" {
		return key, cfg.AuthSource
	}
	if key := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); key != "" {
		return key, "Env: GITHUB_TOKEN"
	}
	if p.ghToken != nil {
		if key, err := p.ghToken(ctx); err == nil && key != "" {
			return key, "gh CLI"
		}
	}
	return "", ""
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	token, authSource := p.resolveToken(ctx, cfg)
	if token == "" {
		return p.Unavailable(cfg, core.Errorf(core.KindConfigMissing,
			"not authenticated (set GITHUB_TOKEN or run `gh auth login`)")), nil
	}
	baseURL := shared.ResolveBaseURL(cfg, defaultBaseURL)
	headers := map[string]string{"Accept": "application/vnd.github+json"}

	var user ghUser
	resp, err := shared.GetJSON(ctx, p.client, baseURL+"/user", token, headers, &user)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.AccountIdentity = user.Login
	r.UsageUnit = "Reqs"
	if authSource != "" {
		r.AuthSource = authSource
	}

	plan := "Unknown Plan"
	var tok copilotToken
	if _, err := shared.GetJSON(ctx, p.client, baseURL+"/copilot_internal/v2/token", token, headers, &tok); err == nil && tok.SKU != "" {
		plan = tok.SKU
		if name, ok := skuNames[tok.SKU]; ok {
			plan = name
		}
	}
	r.Details = append(r.Details, core.UsageDetail{Name: "Plan", Description: plan})

	var limits ghRateLimit
	if _, err := shared.GetJSON(ctx, p.client, baseURL+"/rate_limit", token, headers, &limits); err != nil {
		r.State = core.StateUnknown
		r.Description = plan + " (rate limits unavailable)"
		return []core.UsageRecord{r}, nil
	}

	now := p.now()
	if c, ok := limits.Resources["core"]; ok && c.Limit > 0 {
		used := c.Limit - c.Remaining
		r.AmountUsed = float64(used)
		r.AmountAvailable = float64(c.Limit)
		r.DisplayAsFraction = true
		r.PercentageRemaining, _ = core.RemainingFromCounts(float64(used), float64(c.Limit))
		r.NextResetTime = core.ResetFromUnix(c.Reset, now)
		r.Description = fmt.Sprintf("API Rate Limit (Hourly): %d/%d Used", used, c.Limit)
	}
	if chat, ok := limits.Resources["copilot_chat"]; ok && chat.Limit > 0 {
		pct, _ := core.RemainingFromCounts(float64(chat.Limit-chat.Remaining), float64(chat.Limit))
		r.Details = append(r.Details, core.UsageDetail{
			Name:          "Copilot Chat",
			Used:          core.FormatPercent(100 - pct),
			Description:   fmt.Sprintf("%d / %d remaining", chat.Remaining, chat.Limit),
			NextResetTime: core.ResetFromUnix(chat.Reset, now),
		})
	}
	if r.Description == "" {
		r.Description = plan
	}
	return []core.UsageRecord{r}, nil
}
