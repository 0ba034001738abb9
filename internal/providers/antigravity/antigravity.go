// Package antigravity reads model quotas from a running Antigravity language
// server. The server is found by scanning local processes for its CSRF token,
// then probed on its listening ports with GetUserStatus.
package antigravity

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/discovery"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
	"github.com/janekbaraniewski/aiusage/internal/sourcecache"
)

const userStatusPath = "/exa.language_server_pb.LanguageServerService/GetUserStatus"

var languageServer = discovery.Pattern{
	Contains: []string{"language_server", "antigravity"},
	Token:    regexp.MustCompile(`--csrf_token[=\s]+([a-zA-Z0-9-]+)`),
	PortHint: regexp.MustCompile(`--extension_server_port[=\s]+(\d+)`),
}

type statusRequest struct {
	Metadata requestMetadata `json:"metadata"`
}

type requestMetadata struct {
	IDEName       string `json:"ideName"`
	ExtensionName string `json:"extensionName"`
	IDEVersion    string `json:"ideVersion"`
	Locale        string `json:"locale"`
}

type statusResponse struct {
	UserStatus *userStatus `json:"userStatus"`
}

type userStatus struct {
	Email                  string           `json:"email"`
	CascadeModelConfigData *modelConfigData `json:"cascadeModelConfigData"`
}

type modelConfigData struct {
	ClientModelConfigs []modelConfig `json:"clientModelConfigs"`
	ClientModelSorts   []struct {
		Groups []struct {
			ModelLabels []string `json:"modelLabels"`
		} `json:"groups"`
	} `json:"clientModelSorts"`
}

type modelConfig struct {
	Label     string     `json:"label"`
	QuotaInfo *quotaInfo `json:"quotaInfo"`
}

type quotaInfo struct {
	RemainingFraction *float64 `json:"remainingFraction"`
	TotalRequests     *int     `json:"totalRequests"`
	UsedRequests      *int     `json:"usedRequests"`
	ResetTime         string   `json:"resetTime"`
}

type modelQuota struct {
	label     string
	remaining float64
	reset     *time.Time
}

type Provider struct {
	providerbase.Base
	discoverer *discovery.Discoverer
	client     *http.Client
	lastGood   *sourcecache.LastKnownGood
	now        func() time.Time
}

func New() *Provider {
	sys := discovery.NewSystem()
	return newWithListers(sys, sys, time.Now)
}

func newWithListers(procs discovery.ProcessLister, ports discovery.PortLister, now func() time.Time) *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "antigravity",
			Info: core.SourceInfo{
				Name:         "Antigravity",
				Plan:         core.PlanCoding,
				Capabilities: []string{"local_process", "per_model_quota"},
				DocURL:       "https://antigravity.google/",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeLocal},
		}),
		discoverer: discovery.NewDiscoverer(languageServer, procs, ports, discovery.DefaultCacheTTL, now),
		client:     localClient(),
		lastGood:   sourcecache.NewLastKnownGood(),
		now:        now,
	}
}

// localClient talks to the language server on 127.0.0.1, which serves a
// self-signed certificate.
func localClient() *http.Client {
	return &http.Client{
		Timeout: shared.DefaultHTTPTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // loopback only
		},
	}
}

func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	targets, err := p.discoverer.Targets(ctx)
	if err != nil {
		return p.fallback(cfg, err), nil
	}
	if len(targets) == 0 {
		return p.fallback(cfg, core.Errorf(core.KindDiscoveryFailed, "Antigravity language server not running")), nil
	}

	var statuses []*userStatus
	var lastErr error
	for _, t := range targets {
		var status *userStatus
		_, err := discovery.Probe(ctx, t.Ports, func(ctx context.Context, ep discovery.Endpoint) error {
			s, err := p.getUserStatus(ctx, ep, t.Token)
			status = s
			return err
		})
		if err != nil {
			log.Printf("[antigravity] pid %d: %v", t.PID, err)
			lastErr = err
			continue
		}
		statuses = append(statuses, status)
	}
	if len(statuses) == 0 {
		p.discoverer.Invalidate()
		return p.fallback(cfg, lastErr), nil
	}

	now := p.now()
	var records []core.UsageRecord
	seen := make(map[string]bool)
	hasQuota := false
	for _, s := range statuses {
		email := s.Email
		if email == "" {
			email = p.stateEmail(ctx, cfg)
		}
		if seen[email] {
			continue
		}
		seen[email] = true

		quotas := modelQuotas(s, now)
		if len(quotas) == 0 {
			r := core.UnknownUsage(p.SourceID(cfg), p.Describe().Name, core.PlanCoding)
			r.AccountIdentity = email
			r.AuthSource = "Local language server"
			records = append(records, r)
			continue
		}
		hasQuota = true
		records = append(records, p.accountRecords(cfg, email, quotas)...)
	}

	if hasQuota {
		p.lastGood.Store(records, now)
	} else {
		p.lastGood.Invalidate()
	}
	return records, nil
}

// fallback serves the last successful records in degraded form, or an
// unavailable record when nothing was cached.
func (p *Provider) fallback(cfg core.SourceConfig, err error) []core.UsageRecord {
	if err == nil {
		err = core.Errorf(core.KindDiscoveryFailed, "no Antigravity endpoint answered")
	}
	records, state := p.lastGood.Fallback(p.now())
	if state == sourcecache.StateNoCache {
		return p.Unavailable(cfg, err)
	}
	log.Printf("[antigravity] live fetch failed (%v), serving %s cache", err, state)
	return records
}

func (p *Provider) getUserStatus(ctx context.Context, ep discovery.Endpoint, csrf string) (*userStatus, error) {
	body := statusRequest{Metadata: requestMetadata{
		IDEName:       "antigravity",
		ExtensionName: "antigravity",
		IDEVersion:    "unknown",
		Locale:        "en",
	}}
	headers := map[string]string{
		"X-Codeium-Csrf-Token":     csrf,
		"Connect-Protocol-Version": "1",
	}
	var resp statusResponse
	if _, err := shared.PostJSON(ctx, p.client, ep.BaseURL()+userStatusPath, "", headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.UserStatus == nil {
		return nil, core.Errorf(core.KindUpstreamMalformed, "response has no userStatus")
	}
	return resp.UserStatus, nil
}

func (p *Provider) stateEmail(ctx context.Context, cfg core.SourceConfig) string {
	path := cfg.Extra["state_db"]
	if path == "" {
		path = credentials.AntigravityStatePath()
	}
	email, err := credentials.AntigravityEmail(ctx, path)
	if err != nil {
		log.Printf("[antigravity] reading account email: %v", err)
		return ""
	}
	return email
}

// modelQuotas lists the quota of every model named in the first sort order,
// or of every configured model when the server sends no sort. Models without
// quota data are skipped.
func modelQuotas(s *userStatus, now time.Time) []modelQuota {
	data := s.CascadeModelConfigData
	if data == nil {
		return nil
	}
	configs := lo.KeyBy(lo.Filter(data.ClientModelConfigs, func(c modelConfig, _ int) bool {
		return c.Label != ""
	}), func(c modelConfig) string { return c.Label })

	var labels []string
	if len(data.ClientModelSorts) > 0 {
		for _, g := range data.ClientModelSorts[0].Groups {
			labels = append(labels, g.ModelLabels...)
		}
	} else {
		labels = lo.Map(data.ClientModelConfigs, func(c modelConfig, _ int) string { return c.Label })
	}

	var out []modelQuota
	for _, label := range lo.Uniq(labels) {
		cfg, ok := configs[label]
		if !ok || cfg.QuotaInfo == nil {
			continue
		}
		q := cfg.QuotaInfo
		var remaining float64
		switch {
		case q.RemainingFraction != nil:
			remaining = core.RemainingFromFraction(*q.RemainingFraction)
		case q.TotalRequests != nil && *q.TotalRequests > 0:
			used := 0
			if q.UsedRequests != nil {
				used = *q.UsedRequests
			}
			remaining, _ = core.RemainingFromCounts(float64(used), float64(*q.TotalRequests))
		default:
			continue
		}
		out = append(out, modelQuota{label: label, remaining: remaining, reset: core.ResetFromISO(q.ResetTime, now)})
	}
	return out
}

// accountRecords builds the account record followed by one expansion per model.
func (p *Provider) accountRecords(cfg core.SourceConfig, email string, quotas []modelQuota) []core.UsageRecord {
	summary := p.NewRecord(cfg)
	summary.AccountIdentity = email
	summary.AuthSource = "Local language server"
	summary.UsageUnit = "Quota %"
	summary.AmountAvailable = 100

	expansions := make([]core.UsageRecord, 0, len(quotas))
	windows := make([]core.Window, 0, len(quotas))
	resets := make([]*time.Time, 0, len(quotas))
	for _, q := range quotas {
		alias := cfg.ResolveAlias(q.label)
		summary.Details = append(summary.Details, core.UsageDetail{
			Name:          alias.Name,
			ModelName:     alias.ID,
			Used:          core.FormatPercent(100 - q.remaining),
			Description:   fmt.Sprintf("%.1f%% remaining", q.remaining),
			NextResetTime: q.reset,
		})
		remaining := q.remaining
		windows = append(windows, core.Window{Name: q.label, Remaining: &remaining})
		resets = append(resets, q.reset)

		e := p.NewRecord(cfg)
		e.Kind = core.RecordExpansion
		e.AccountIdentity = email
		e.AuthSource = summary.AuthSource
		e.Model = alias.Name
		e.UsageUnit = "Quota %"
		e.PercentageRemaining = q.remaining
		e.AmountUsed = 100 - q.remaining
		e.AmountAvailable = 100
		e.NextResetTime = q.reset
		e.Description = fmt.Sprintf("%.1f%% Used", 100-q.remaining)
		expansions = append(expansions, e)
	}
	core.SortDetails(summary.Details)

	pct, _ := core.BlendWindows(windows)
	summary.PercentageRemaining = pct
	summary.AmountUsed = 100 - pct
	summary.NextResetTime = core.EarliestReset(resets...)
	summary.Description = fmt.Sprintf("%.1f%% Used", 100-pct)
	return append([]core.UsageRecord{summary}, expansions...)
}
