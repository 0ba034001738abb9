// Package gemini_api checks a Google AI Studio key against the Gemini API.
//
// Gemini enforces RPM/TPM/RPD per project tier but sends no remaining-quota
// headers, so the record confirms the key works and lists model access.
package gemini_api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type modelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "gemini-api",
			Info: core.SourceInfo{
				Name:         "Gemini API",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "model_list"},
				DocURL:       "https://ai.google.dev/gemini-api/docs/rate-limits",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "GEMINI_API_KEY"},
		}),
		client: shared.NewHTTPClient(),
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	endpoint := shared.ResolveBaseURL(cfg, defaultBaseURL) + "/models?" + url.Values{"pageSize": {"1000"}}.Encode()
	var body modelsResponse
	resp, err := shared.GetJSON(ctx, p.client, endpoint, "", map[string]string{"x-goog-api-key": apiKey}, &body)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "Status"
	r.PercentageRemaining = 100
	r.Description = fmt.Sprintf("Connected (%d models)", len(body.Models))

	var gemini []string
	for _, m := range body.Models {
		name := strings.TrimPrefix(m.Name, "models/")
		if strings.HasPrefix(name, "gemini-") {
			gemini = append(gemini, name)
		}
	}
	if len(gemini) > 0 {
		r.Details = append(r.Details, core.UsageDetail{
			Name:        "Gemini Models",
			Used:        fmt.Sprintf("%d", len(gemini)),
			Description: shared.Truncate([]byte(strings.Join(gemini, ", ")), 120),
		})
	}
	return []core.UsageRecord{r}, nil
}
