// Package deepseek reads the prepaid balance from DeepSeek's dedicated
// endpoint:
//
//	GET https://api.deepseek.com/user/balance
//	{"is_available": true, "balance_infos": [{"currency": "CNY", "total_balance": "110.00",
//	  "granted_balance": "10.00", "topped_up_balance": "100.00"}]}
package deepseek

import (
	"context"
	"fmt"
	"net/http"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const defaultBaseURL = "https://api.deepseek.com"

type balanceResponse struct {
	IsAvailable  bool          `json:"is_available"`
	BalanceInfos []balanceInfo `json:"balance_infos"`
}

type balanceInfo struct {
	Currency        string            `json:"currency"`
	TotalBalance    parsers.FlexFloat `json:"total_balance"`
	GrantedBalance  parsers.FlexFloat `json:"granted_balance"`
	ToppedUpBalance parsers.FlexFloat `json:"topped_up_balance"`
}

type Provider struct {
	providerbase.Base
	client *http.Client
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "deepseek",
			Info: core.SourceInfo{
				Name:         "DeepSeek",
				Plan:         core.PlanUsage,
				Capabilities: []string{"http", "balance_endpoint"},
				DocURL:       "https://api-docs.deepseek.com/api/get-user-balance",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeAPIKey, APIKeyEnv: "DEEPSEEK_API_KEY"},
		}),
		client: shared.NewHTTPClient(),
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	apiKey, missing := p.RequireAPIKey(cfg)
	if missing != nil {
		return missing, nil
	}

	var balance balanceResponse
	url := shared.ResolveBaseURL(cfg, defaultBaseURL) + "/user/balance"
	resp, err := shared.GetJSON(ctx, p.client, url, apiKey, nil, &balance)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}
	if len(balance.BalanceInfos) == 0 {
		return p.Unavailable(cfg, core.Errorf(core.KindUpstreamMalformed, "balance response lists no currencies")), nil
	}

	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.RawPayload = shared.Truncate(resp.Body, 2048)
	for _, info := range balance.BalanceInfos {
		r.Details = append(r.Details, core.UsageDetail{
			Name: "Balance (" + info.Currency + ")",
			Used: fmt.Sprintf("%.2f %s", info.TotalBalance.Value, info.Currency),
			Description: fmt.Sprintf("granted %.2f, topped up %.2f",
				info.GrantedBalance.Value, info.ToppedUpBalance.Value),
		})
	}

	first := balance.BalanceInfos[0]
	r.UsageUnit = first.Currency
	r.AmountAvailable = first.TotalBalance.Value
	r.Description = fmt.Sprintf("Balance: %.2f %s", first.TotalBalance.Value, first.Currency)
	if balance.IsAvailable {
		r.PercentageRemaining = 100
	} else {
		r.Description += " (insufficient for API calls)"
	}
	return []core.UsageRecord{r}, nil
}
