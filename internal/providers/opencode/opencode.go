// Package opencode reads the credit balance of OpenCode and OpenCode Zen
// keys. Both products share the /v1/credits endpoint; Zen additionally
// breaks the balance down into detail rows.
package opencode

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.opencode.ai/v1"

// The gateway answers unknown accounts with a plain-text body and a 200.
var notFoundBody = []byte("Not Found")

type Provider struct {
	providerbase.Base
	client   *http.Client
	breakout bool
}

func New() *Provider {
	return newProvider("opencode", "OpenCode", false)
}

// NewZen returns the OpenCode Zen variant.
func NewZen() *Provider {
	return newProvider("opencode-zen", "OpenCode Zen", true)
}

func newProvider(id, name string, breakout bool) *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: id,
			Info: core.SourceInfo{
				Name:         name,
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "credits_endpoint"},
				DocURL:       "https://opencode.ai/docs/zen/",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "OPENCODE_API_KEY"},
		}),
		client:   shared.NewHTTPClient(),
		breakout: breakout,
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, creditsURL(cfg), apiKey, nil, nil)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if bytes.Equal(bytes.TrimSpace(resp.Body), notFoundBody) {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamRejected, "credits endpoint not available for this key")), nil
	}

	snap, err := shared.ParseCredits(resp.Body)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	shared.ApplyCredits(&r, snap)
	r.Description = fmt.Sprintf("%.2f / %.2f credits", snap.Used, snap.Total)
	if p.breakout {
		usedPct := 100 - r.PercentageRemaining
		r.Details = append(r.Details,
			core.UsageDetail{Name: "Total Credits", Used: fmt.Sprintf("%.2f", snap.Total), Description: "Available credits"},
			core.UsageDetail{Name: "Used Credits", Used: fmt.Sprintf("%.2f", snap.Used), Description: fmt.Sprintf("%.1f%% of total", usedPct)},
			core.UsageDetail{Name: "Remaining Credits", Used: fmt.Sprintf("%.2f", snap.Remaining()), Description: "Available for use"},
		)
	}
	return []core.UsageRecord{r}, nil
}

// creditsURL accepts either an API base or a full credits URL in BaseURL.
func creditsURL(cfg core.SourceConfig) string {
	base := shared.ResolveBaseURL(cfg, defaultBaseURL)
	if strings.HasSuffix(base, "/credits") {
		return base
	}
	return base + "/credits"
}
