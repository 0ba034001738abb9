// Package claude_code reports the Claude subscription windows of the account
// logged in to Claude Code, read from the OAuth usage endpoint.
package claude_code

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	usagePath      = "/api/oauth/usage"
	oauthBeta      = "oauth-2025-04-20"
)

type usageResponse struct {
	FiveHour       *usageBucket `json:"five_hour"`
	SevenDay       *usageBucket `json:"seven_day"`
	SevenDaySonnet *usageBucket `json:"seven_day_sonnet"`
	SevenDayOpus   *usageBucket `json:"seven_day_opus"`
}

type usageBucket struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    string   `json:"resets_at"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "claude-code",
			Info: core.SourceInfo{
				Name:         "Claude Code",
				Plan:         core.PlanCoding,
				Capabilities: []string{"credential_file", "oauth_usage", "windows"},
				DocURL:       "https://docs.anthropic.com/en/docs/claude-code",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeOAuth},
		}),
		client: shared.NewHTTPClient(),
		now:    time.Now,
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	path := cfg.Extra["credentials_file"]
	if path == "" {
		path = credentials.ClaudeCredentialsPath()
	}
	oauth, err := credentials.LoadClaude(path)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	now := p.now()
	if oauth.Expired(now) {
		return p.Unavailable(cfg, core.Errorf(core.KindConfigMissing,
			"Claude Code login expired; run `claude` to refresh it")), nil
	}

	var body usageResponse
	headers := map[string]string{"anthropic-beta": oauthBeta}
	url := shared.ResolveBaseURL(cfg, defaultBaseURL) + usagePath
	resp, err := shared.GetJSON(ctx, p.client, url, oauth.AccessToken, headers, &body)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.AuthSource = "File: " + path
	r.UsageUnit = "Quota %"
	r.AmountAvailable = 100
	if oauth.SubscriptionType != "" {
		r.Details = append(r.Details, core.UsageDetail{Name: "Plan", Description: strings.ToUpper(oauth.SubscriptionType[:1]) + oauth.SubscriptionType[1:]})
	}

	var windows []core.Window
	var resets []*time.Time
	for _, b := range []struct {
		name   string
		bucket *usageBucket
		blend  bool
	}{
		{"5h Window", body.FiveHour, true},
		{"7d Window", body.SevenDay, true},
		{"7d Sonnet", body.SevenDaySonnet, false},
		{"7d Opus", body.SevenDayOpus, false},
	} {
		if b.bucket == nil || b.bucket.Utilization == nil {
			continue
		}
		used := core.ClampPercent(*b.bucket.Utilization)
		remaining := 100 - used
		reset := core.ResetFromISO(b.bucket.ResetsAt, now)
		r.Details = append(r.Details, core.UsageDetail{
			Name:          b.name,
			Used:          core.FormatPercent(used),
			Description:   fmt.Sprintf("%.1f%% remaining", remaining),
			NextResetTime: reset,
		})
		if b.blend {
			windows = append(windows, core.Window{Name: b.name, Remaining: &remaining})
			resets = append(resets, reset)
		}
	}

	pct, ok := core.BlendWindows(windows)
	if !ok {
		unknown := core.UnknownUsage(r.SourceID, r.DisplayName, core.PlanCoding)
		unknown.AuthSource = r.AuthSource
		unknown.Details = r.Details
		return []core.UsageRecord{unknown}, nil
	}
	r.PercentageRemaining = pct
	r.AmountUsed = 100 - pct
	r.NextResetTime = core.EarliestReset(resets...)
	r.Description = fmt.Sprintf("%.1f%% Used", 100-pct)
	if r.NextResetTime != nil {
		r.Description += " (Resets: " + r.NextResetTime.Local().Format("Jan 02 15:04") + ")"
	}
	return []core.UsageRecord{r}, nil
}
