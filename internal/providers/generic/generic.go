// Package generic serves pay-as-you-go sources that have no dedicated
// adapter. It resolves an endpoint per source id and accepts any of the
// subscription, credits and balance payload shapes.
package generic

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const ID = "generic-pay-as-you-go"

var defaultURLs = map[string]string{
	"minimax": "https://api.minimax.chat/v1/user/usage",
	"xiaomi":  "https://api.xiaomimimo.com/v1/user/balance",
}

// Path fragments that mark a URL as already pointing at a usage endpoint.
var endpointMarkers = []string{"/credits", "/quota", "billing", "usage", "balance"}

type Provider struct {
	providerbase.Base
	client        *http.Client
	now           func() time.Time
	providerFiles []string
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: ID,
			Info: core.SourceInfo{
				Name:         "Pay-as-you-go",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "credits_endpoint"},
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey},
		}),
		client:        shared.NewHTTPClient(),
		now:           time.Now,
		providerFiles: credentials.ProvidersFilePaths(),
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	id := p.SourceID(cfg)
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	url := p.resolveURL(id, cfg.BaseURL)
	if url == "" {
		return p.Unavailable(cfg, core.Errorf(core.KindConfigMissing,
			"no endpoint known for %s (add base_url to its auth entry)", id)), nil
	}

	req, err := shared.CreateStandardRequest(ctx, http.MethodGet, url, apiKey, nil, nil)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if bytes.EqualFold(bytes.TrimSpace(resp.Body), []byte("Not Found")) {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamRejected, "Not Found (invalid key or URL)")), nil
	}

	snap, err := shared.ParseAnyCredits(resp.Body, p.now())
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.DisplayName = displayName(id, url)
	r.HTTPStatus = resp.Status
	r.RawPayload = shared.Truncate(resp.Body, 2048)
	shared.ApplyCredits(&r, snap)
	return []core.UsageRecord{r}, nil
}

// resolveURL picks the configured URL, a built-in default, or the opencode
// providers.json entry, then normalizes it to a credits endpoint.
func (p *Provider) resolveURL(id, configured string) string {
	url := strings.TrimSpace(configured)
	if url == "" {
		url = defaultURL(id)
	}
	if url == "" {
		url = credentials.LookupProviderURL(id, p.providerFiles...)
	}
	if url == "" {
		return ""
	}
	return NormalizeURL(url)
}

func defaultURL(id string) string {
	switch {
	case strings.Contains(id, "opencode"):
		return "https://api.opencode.ai/v1/credits"
	case strings.Contains(id, "kilocode") || id == "kilo":
		return "https://api.kilocode.ai/v1/credits"
	}
	return defaultURLs[id]
}

// NormalizeURL adds a scheme when missing and appends /v1/credits unless the
// URL already names a usage endpoint.
func NormalizeURL(url string) string {
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	for _, marker := range endpointMarkers {
		if strings.Contains(url, marker) {
			return url
		}
	}
	url = strings.TrimRight(url, "/")
	if strings.HasSuffix(url, "/v1") {
		return url + "/credits"
	}
	return url + "/v1/credits"
}

// displayName title-cases the source id, or the host when the source is the
// bare generic id.
func displayName(id, url string) string {
	name := id
	if id == ID {
		name = strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
		name = strings.TrimSuffix(strings.TrimSuffix(name, "/v1/credits"), "/credits")
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '.' || r == ' ' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
