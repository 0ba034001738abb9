package gemini_cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
	"github.com/janekbaraniewski/aiusage/internal/providers/providerbase"
	"github.com/janekbaraniewski/aiusage/internal/providers/shared"
)

const (
	tokenEndpoint      = "https://oauth2.googleapis.com/token"
	codeAssistEndpoint = "https://cloudcode-pa.googleapis.com"

	clientIDEnv     = "GOOGLE_CLIENT_ID"
	clientSecretEnv = "GOOGLE_CLIENT_SECRET"

	// Tokens are refreshed this long before they expire.
	tokenExpiryBuffer = 5 * time.Minute
)

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

type tokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type quotaBucket struct {
	RemainingFraction *float64 `json:"remainingFraction"`
	ResetTime         string   `json:"resetTime"`
	QuotaID           string   `json:"quotaId"`
	ModelID           string   `json:"modelId"`
}

type quotaResponse struct {
	Buckets []quotaBucket `json:"buckets"`
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

type Provider struct {
	providerbase.Base
	client   *http.Client
	now      func() time.Time
	tokenURL string

	mu     sync.Mutex
	tokens map[string]cachedToken // keyed by refresh token
}

func New() *Provider {
	return &Provider{
		Base: providerbase.New(core.SourceSpec{
			ID: "gemini-cli",
			Info: core.SourceInfo{
				Name:         "Gemini CLI",
				Plan:         core.PlanCoding,
				Capabilities: []string{"credential_file", "oauth_refresh", "quota_api"},
				DocURL:       "https://github.com/google-gemini/gemini-cli",
			},
			Auth: core.SourceAuthSpec{Type: core.SourceAuthTypeOAuth},
		}),
		client:   shared.NewHTTPClient(),
		now:      time.Now,
		tokenURL: tokenEndpoint,
		tokens:   make(map[string]cachedToken),
	}
}

// Fetch returns one record per account in the accounts file. The first
// account becomes the summary; the rest are reported as expansions.
func (p *Provider) Fetch(ctx context.Context, cfg core.SourceConfig) ([]core.UsageRecord, error) {
	path := cfg.Extra["accounts_file"]
	if path == "" {
		path = credentials.GoogleAccountsPath()
	}
	accounts, err := credentials.LoadGoogleAccounts(path)
	if err != nil {
		return p.Unavailable(cfg, err), nil
	}

	records := make([]core.UsageRecord, 0, len(accounts))
	for _, account := range accounts {
		r, err := p.fetchAccount(ctx, cfg, account)
		if err != nil {
			r = p.Unavailable(cfg, err)[0]
			r.Description = account.Email + ": " + r.Description
		}
		r.AccountIdentity = account.Email
		records = append(records, r)
	}
	return records, nil
}

func (p *Provider) fetchAccount(ctx context.Context, cfg core.SourceConfig, account credentials.GoogleAccount) (core.UsageRecord, error) {
	token, err := p.accessToken(ctx, account.RefreshToken)
	if err != nil {
		return core.UsageRecord{}, err
	}

	var body quotaResponse
	endpoint := shared.ResolveBaseURL(cfg, codeAssistEndpoint) + "/v1internal:retrieveUserQuota"
	resp, err := shared.PostJSON(ctx, p.client, endpoint, token, nil, map[string]string{"project": account.ProjectID}, &body)
	if err != nil {
		return core.UsageRecord{}, err
	}

	now := p.now()
	r := p.NewRecord(cfg)
	r.HTTPStatus = resp.Status
	r.UsageUnit = "Quota %"

	var windows []core.Window
	var resets []*time.Time
	for _, b := range body.Buckets {
		if b.RemainingFraction == nil {
			continue
		}
		remaining := core.RemainingFromFraction(*b.RemainingFraction)
		reset := core.ResetFromISO(b.ResetTime, now)
		if reset == nil {
			reset = inferReset(b.QuotaID, now)
		}
		name := bucketName(b)
		r.Details = append(r.Details, core.UsageDetail{
			Name:          name,
			ModelName:     b.ModelID,
			Used:          core.FormatPercent(100 - remaining),
			Description:   fmt.Sprintf("%.1f%% remaining", remaining),
			NextResetTime: reset,
		})
		windows = append(windows, core.Window{Name: name, Remaining: &remaining})
		resets = append(resets, reset)
	}

	pct, ok := core.BlendWindows(windows)
	if !ok {
		unknown := core.UnknownUsage(r.SourceID, r.DisplayName, core.PlanCoding)
		unknown.HTTPStatus = resp.Status
		unknown.AuthSource = r.AuthSource
		return unknown, nil
	}
	r.PercentageRemaining = pct
	r.AmountUsed = 100 - pct
	r.AmountAvailable = 100
	r.NextResetTime = core.EarliestReset(resets...)
	r.Description = fmt.Sprintf("%.1f%% Used", 100-pct)
	if r.NextResetTime != nil {
		r.Description += " (Resets: " + r.NextResetTime.Local().Format("Jan 02 15:04") + ")"
	}
	return r, nil
}

// accessToken exchanges the refresh token, reusing a cached access token
// until it is within tokenExpiryBuffer of expiring.
func (p *Provider) accessToken(ctx context.Context, refreshToken string) (string, error) {
	now := p.now()
	p.mu.Lock()
	cached, ok := p.tokens[refreshToken]
	p.mu.Unlock()
	if ok && now.Add(tokenExpiryBuffer).Before(cached.expiresAt) {
		return cached.accessToken, nil
	}

	clientID := strings.TrimSpace(os.Getenv(clientIDEnv))
	clientSecret := strings.TrimSpace(os.Getenv(clientSecretEnv))
	if clientID == "" || clientSecret == "" {
		return "", core.Errorf(core.KindConfigMissing, "set %s and %s to refresh Google tokens", clientIDEnv, clientSecretEnv)
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := shared.CreateStandardRequest(ctx, http.MethodPost, p.tokenURL, "",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if err != nil {
		return "", err
	}
	resp, err := shared.Do(p.client, req)
	if err != nil {
		return "", err
	}
	var tok tokenRefreshResponse
	if err := shared.DecodeJSON(resp.Body, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", core.Errorf(core.KindUpstreamMalformed, "token refresh returned no access_token")
	}

	p.mu.Lock()
	p.tokens[refreshToken] = cachedToken{
		accessToken: tok.AccessToken,
		expiresAt:   now.Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	p.mu.Unlock()
	return tok.AccessToken, nil
}

// bucketName turns "RequestsPerDayPerProject" style ids into a short label.
func bucketName(b quotaBucket) string {
	id := b.QuotaID
	if id == "" {
		if b.ModelID != "" {
			return b.ModelID
		}
		return "Quota Bucket"
	}
	name := camelBoundary.ReplaceAllString(id, "$1 $2")
	name = strings.ReplaceAll(name, "Requests Per Day", "(Day)")
	name = strings.ReplaceAll(name, "Requests Per Minute", "(Min)")
	if b.ModelID != "" {
		name = b.ModelID + " " + name
	}
	return strings.TrimSpace(name)
}

// inferReset fills in the reset for buckets that omit resetTime: daily
// buckets roll over at UTC midnight, per-minute buckets a minute from now.
func inferReset(quotaID string, now time.Time) *time.Time {
	id := strings.ToLower(quotaID)
	switch {
	case strings.Contains(id, "requestsperday"):
		u := now.UTC()
		at := time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
		return &at
	case strings.Contains(id, "requestsperminute"):
		at := now.Add(time.Minute)
		return &at
	}
	return nil
}
