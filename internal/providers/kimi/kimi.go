package kimi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.kimi.com"

type usagesResponse struct {
	Usage  *usageBlock `json:"usage"`
	Limits []limitItem `json:"limits"`
}

type usageBlock struct {
	Limit     parsers.FlexFloat `json:"limit"`
	Used      parsers.FlexFloat `json:"used"`
	Remaining parsers.FlexFloat `json:"remaining"`
	ResetTime string            `json:"resetTime"`
}

type limitItem struct {
	Window *struct {
		Duration int    `json:"duration"`
		TimeUnit string `json:"timeUnit"`
	} `json:"window"`
	Detail *usageBlock `json:"detail"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
	now    func() time.Time
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "kimi",
			Info: core.SourceInfo{
				Name:         "Kimi",
				Plan:         core.PlanCoding,
				Capabilities: []string{"http", "windows"},
				DocURL:       "https://www.kimi.com/coding/docs/",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "KIMI_API_KEY"},
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

	var body usagesResponse
	url := shared.ResolveBaseURL(cfg, defaultBaseURL) + "/coding/v1/usages"
	resp, err := shared.GetJSON(ctx, p.client, url, apiKey, nil, &body)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if body.Usage == nil {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamMalformed, "usages response has no usage block")), nil
	}

	now := p.now()
	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "Points"

	limit, remaining := body.Usage.Limit.Value, body.Usage.Remaining.Value
	r.AmountUsed = body.Usage.Used.Value
	r.AmountAvailable = limit
	if limit <= 0 {
		r.PercentageRemaining = 100
		r.Description = "Unlimited / Pay-as-you-go"
		return []core.UsageRecord{r}, nil
	}

	overall, _ := core.RemainingFromCounts(limit-remaining, limit)
	windows := []core.Window{{Name: "overall", Remaining: &overall}}
	resets := []*time.Time{core.ResetFromISO(body.Usage.ResetTime, now)}
	for _, item := range body.Limits {
		if item.Window == nil || item.Detail == nil || item.Detail.Limit.Value <= 0 {
			continue
		}
		d := item.Detail
		pct, _ := core.RemainingFromCounts(d.Limit.Value-d.Remaining.Value, d.Limit.Value)
		reset := core.ResetFromISO(d.ResetTime, now)
		name := windowName(item.Window.Duration, item.Window.TimeUnit) + " Limit"
		r.Details = append(r.Details, core.UsageDetail{
			Name:          name,
			Used:          core.FormatPercent(100 - pct),
			Description:   core.FormatAmount(d.Remaining.Value) + " remaining",
			NextResetTime: reset,
		})
		windows = append(windows, core.Window{Name: name, Remaining: &pct})
		resets = append(resets, reset)
	}

	r.PercentageRemaining, _ = core.BlendWindows(windows)
	r.NextResetTime = core.EarliestReset(resets...)
	r.Description = fmt.Sprintf("%.1f%% used (%s / %s remaining)",
		100-overall, core.FormatAmount(remaining), core.FormatAmount(limit))
	return []core.UsageRecord{r}, nil
}

func windowName(duration int, unit string) string {
	switch unit {
	case "TIME_UNIT_HOUR":
		return core.WindowLabel(time.Duration(duration) * time.Hour)
	case "TIME_UNIT_DAY":
		return core.WindowLabel(time.Duration(duration) * 24 * time.Hour)
	case "TIME_UNIT_MINUTE", "":
		if duration == 60 {
			return "Hourly"
		}
		return core.WindowLabel(time.Duration(duration) * time.Minute)
	}
	return unit
}
