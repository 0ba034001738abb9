// Package codex reads the ChatGPT rate-limit windows that back the Codex CLI,
// using the login stored in ~/.codex/auth.json.
package codex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultChatGPTBaseURL = "https://chatgpt.com/backend-api"

type usagePayload struct {
	Email               string             `json:"email,omitempty"`
	AccountID           string             `json:"account_id,omitempty"`
	PlanType            string             `json:"plan_type,omitempty"`
	RateLimit           *usageLimitDetails `json:"rate_limit,omitempty"`
	CodeReviewRateLimit *usageLimitDetails `json:"code_review_rate_limit,omitempty"`
	Credits             *usageCredits      `json:"credits,omitempty"`
}

type usageLimitDetails struct {
	Allowed         bool             `json:"allowed"`
	LimitReached    bool             `json:"limit_reached"`
	PrimaryWindow   *usageWindowInfo `json:"primary_window,omitempty"`
	SecondaryWindow *usageWindowInfo `json:"secondary_window,omitempty"`
}

type usageWindowInfo struct {
	UsedPercent        float64 `json:"used_percent"`
	LimitWindowSeconds int     `json:"limit_window_seconds"`
	ResetAfterSeconds  int     `json:"reset_after_seconds"`
	ResetAt            int64   `json:"reset_at"`
}

type usageCredits struct {
	HasCredits bool              `json:"has_credits"`
	Unlimited  bool              `json:"unlimited"`
	Balance    parsers.FlexFloat `json:"balance"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "codex",
			Info: core.SourceInfo{
				Name:         "Codex",
				Plan:         core.PlanCoding,
				Capabilities: []string{"credential_file", "live_usage_endpoint", "rate_limits", "credits"},
				DocURL:       "https://github.com/openai/codex",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeOAuth},
		}),
		client: shared.NewHTTPClient(),
		now:    time.Now,
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	authPath := cfg.Extra["auth_file"]
	if authPath == "" {
		authPath = credentials.CodexAuthPath()
	}
	auth, err := credentials.LoadCodex(authPath)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	headers := map[string]string{}
	if auth.AccountID != "" {
		headers["ChatGPT-Account-Id"] = auth.AccountID
	}
	var payload usagePayload
	usageURL := usageURLForBase(normalizeChatGPTBaseURL(cfg.BaseURL))
	resp, err := shared.GetJSON(ctx, p.client, usageURL, auth.AccessToken, headers, &payload)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	now := p.now()
	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.AuthSource = "File: " + authPath
	r.AccountIdentity = firstNonEmpty(payload.Email, auth.Email)
	r.UsageUnit = "Quota %"
	r.AmountAvailable = 100

	var windows []core.Window
	var resets []*time.Time
	if rl := payload.RateLimit; rl != nil {
		for _, w := range []*usageWindowInfo{rl.PrimaryWindow, rl.SecondaryWindow} {
			detail, remaining, ok := windowDetail(w, "Limit", now)
			if !ok {
				continue
			}
			r.Details = append(r.Details, detail)
			windows = append(windows, core.Window{Name: detail.Name, Remaining: &remaining})
			resets = append(resets, detail.NextResetTime)
		}
	}
	if crl := payload.CodeReviewRateLimit; crl != nil {
		if detail, _, ok := windowDetail(crl.PrimaryWindow, "Code Review", now); ok {
			r.Details = append(r.Details, detail)
		}
	}
	if c := payload.Credits; c != nil {
		r.Details = append(r.Details, creditsDetail(c))
	}

	pct, ok := core.BlendWindows(windows)
	if !ok {
		unknown := core.UnknownUsage(r.SourceID, r.DisplayName, core.PlanCoding)
		unknown.AccountIdentity = r.AccountIdentity
		unknown.AuthSource = r.AuthSource
		unknown.Details = r.Details
		return []core.UsageRecord{unknown}, nil
	}
	r.PercentageRemaining = pct
	r.AmountUsed = 100 - pct
	r.NextResetTime = core.EarliestReset(resets...)
	r.Description = fmt.Sprintf("%.1f%% Used", 100-pct)
	if plan := firstNonEmpty(payload.PlanType, auth.PlanType); plan != "" {
		r.Description = titleCase(plan) + ": " + r.Description
	}
	if payload.RateLimit.LimitReached {
		r.Description += " (limit reached)"
	}
	return []core.UsageRecord{r}, nil
}

// windowDetail renders one rate-limit window as "5h Limit" style detail.
func windowDetail(w *usageWindowInfo, suffix string, now time.Time) (core.UsageDetail, float64, bool) {
	if w == nil {
		return core.UsageDetail{}, 0, false
	}
	used := core.ClampPercent(w.UsedPercent)
	remaining := 100 - used
	reset := core.ResetFromUnix(w.ResetAt, now)
	if reset == nil {
		reset = core.ResetFromRelative(float64(w.ResetAfterSeconds), now)
	}
	name := suffix
	if label := core.WindowLabel(time.Duration(w.LimitWindowSeconds) * time.Second); label != "" {
		name = label + " " + suffix
	}
	return core.UsageDetail{
		Name:          name,
		Used:          core.FormatPercent(used),
		Description:   fmt.Sprintf("%.1f%% remaining", remaining),
		NextResetTime: reset,
	}, remaining, true
}

func creditsDetail(c *usageCredits) core.UsageDetail {
	d := core.UsageDetail{Name: core.CreditsTag + " Balance"}
	switch {
	case c.Unlimited:
		d.Used = "Unlimited"
	case c.HasCredits && c.Balance.Valid:
		d.Used = fmt.Sprintf("$%.2f", c.Balance.Value)
	case c.HasCredits:
		d.Used = "Available"
	default:
		d.Used = "None"
	}
	return d
}

func normalizeChatGPTBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return defaultChatGPTBaseURL
	}
	if (strings.HasPrefix(baseURL, "https://chatgpt.com") || strings.HasPrefix(baseURL, "https://chat.openai.com")) &&
		!strings.Contains(baseURL, "/backend-api") {
		baseURL += "/backend-api"
	}
	return baseURL
}

// usageURLForBase picks the ChatGPT backend route or the self-hosted Codex route.
func usageURLForBase(baseURL string) string {
	if strings.Contains(baseURL, "/backend-api") {
		return baseURL + "/wham/usage"
	}
	return baseURL + "/api/codex/usage"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

