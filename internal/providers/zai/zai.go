package zai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const (
	defaultGlobalMonitorBaseURL = "https://api.z.ai"
	defaultChinaMonitorBaseURL  = "https://open.bigmodel.cn"

	quotaLimitPath = "/api/monitor/usage/quota/limit"
)

var planTiers = core.TierTable{
	Rules: []core.TierRule{
		{Min: 50_000_000, Label: "Coding Plan (Ultra/Enterprise)"},
		{Min: 10_000_000, Label: "Coding Plan (Pro)"},
	},
	Default: "Coding Plan",
}

type quotaEnvelope struct {
	Data *struct {
		Limits []limitRow `json:"limits"`
	} `json:"data"`
}

type limitRow struct {
	Type         string            `json:"type"`
	Percentage   parsers.FlexFloat `json:"percentage"`
	CurrentValue parsers.FlexFloat `json:"currentValue"`
	Usage        parsers.FlexFloat `json:"usage"`
	Remaining    parsers.FlexFloat `json:"remaining"`
}

// usedPercent prefers the reported percentage, accepting either 0..1 or
// 0..100, and falls back to currentValue/usage.
func (l limitRow) usedPercent() (float64, bool) {
	if l.Percentage.Valid {
		if l.Percentage.Value <= 1 {
			return l.Percentage.Value * 100, true
		}
		return l.Percentage.Value, true
	}
	if l.CurrentValue.Valid && l.Usage.Value > 0 {
		return l.CurrentValue.Value / l.Usage.Value * 100, true
	}
	return 0, false
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "zai",
			Info: core.SourceInfo{
				Name:         "Z.AI",
				Plan:         core.PlanCoding,
				Capabilities: []string{"http", "quota_limits"},
				DocURL:       "https://docs.z.ai/devpack/overview",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "ZAI_API_KEY"},
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

	reqURL := resolveMonitorBase(cfg) + quotaLimitPath
	var body quotaEnvelope
	resp, err := p.getQuota(ctx, reqURL, apiKey, false, &body)
	if isAuthRejection(err) {
		// Older keys expect a Bearer prefix on the monitor API.
		resp, err = p.getQuota(ctx, reqURL, apiKey, true, &body)
	}
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if body.Data == nil || len(body.Data.Limits) == 0 {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamMalformed, "no usage limits found")), nil
	}

	now := p.now()
	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "Quota %"

	var windows []core.Window
	tier := "API"
	summary := ""
	for _, row := range body.Data.Limits {
		used, ok := row.usedPercent()
		if !ok {
			continue
		}
		remaining := core.RemainingFromUsedPercent(used)
		switch strings.ToUpper(row.Type) {
		case "TOKENS_LIMIT":
			tier = planTiers.Lookup(row.Usage.Value)
			windows = append(windows, core.Window{Name: "Tokens", Remaining: &remaining})
			if row.Usage.Value > 0 {
				summary = fmt.Sprintf("%.1f%% of %.0fM tokens used", used, row.Usage.Value/1_000_000)
			}
			r.Details = append(r.Details, core.UsageDetail{Name: "Tokens", Used: core.FormatPercent(used)})
		case "TIME_LIMIT":
			// MCP time usage only counts once it has started.
			if used > 0 {
				windows = append(windows, core.Window{Name: "MCP Time", Remaining: &remaining})
			}
			r.Details = append(r.Details, core.UsageDetail{Name: "MCP Time", Used: core.FormatPercent(used)})
		}
	}

	pct, ok := core.BlendWindows(windows)
	if !ok {
		pct = 100
	}
	r.PercentageRemaining = pct
	r.AmountUsed = 100 - pct
	r.AmountAvailable = 100
	r.DisplayName = "Z.AI " + tier

	reset := nextUTCMidnight(now)
	r.NextResetTime = &reset
	for i := range r.Details {
		r.Details[i].NextResetTime = &reset
	}
	if summary == "" {
		summary = fmt.Sprintf("%.1f%% utilized", 100-pct)
	}
	r.Description = summary + " (Resets: " + reset.Format("Jan 02 15:04") + ")"
	return []core.UsageRecord{r}, nil
}

func (p *Provider) getQuota(ctx context.Context, reqURL, token string, bearer bool, v any) (shared.Response, error) {
	auth := token
	if bearer {
		auth = "Bearer " + token
	}
	headers := map[string]string{
		"Authorization":   auth,
		"Accept-Language": "en-US,en",
	}
	return shared.GetJSON(ctx, p.client, reqURL, "", headers, v)
}

func isAuthRejection(err error) bool {
	return errors.Is(err, &core.FetchError{Kind: core.KindUpstreamRejected, Status: http.StatusUnauthorized})
}

// nextUTCMidnight is the daily quota reset, returned in local time for display.
func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC).Local()
}

// resolveMonitorBase accepts a monitor root or a coding API URL in BaseURL
// and picks the China endpoint when plan_type says so.
func resolveMonitorBase(cfg core.SourceConfig) string {
	if cfg.BaseURL != "" {
		base := strings.TrimRight(cfg.BaseURL, "/")
		if parsed, err := url.Parse(base); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			return parsed.Scheme + "://" + parsed.Host
		}
		return strings.TrimSuffix(base, "/api/coding/paas/v4")
	}
	if strings.Contains(strings.ToLower(cfg.Extra["plan_type"]), "china") {
		return defaultChinaMonitorBaseURL
	}
	return defaultGlobalMonitorBaseURL
}
