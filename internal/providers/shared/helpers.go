package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/version"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 4 << 20
)

func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

func CreateStandardRequest(ctx context.Context, method, url, apiKey string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, core.WrapError(core.KindConfigMissing, "invalid endpoint URL", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if _, hasAuth := headers["Authorization"]; !hasAuth && apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do executes req and maps every failure onto the error taxonomy: transport
// failures become timeout/unreachable, non-2xx statuses become
// upstream_rejected. The body is returned in both cases.
func Do(client *http.Client, req *http.Request) (Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		kind := core.KindOf(err)
		if kind == core.KindUnknown {
			kind = core.KindUnreachable
		}
		return Response{}, core.WrapError(kind, fmt.Sprintf("%s %s", req.Method, req.URL.Host), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	out := Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	if err != nil {
		return out, core.WrapError(core.KindOf(err), "reading response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, core.RejectedError(resp.StatusCode, statusMessage(resp.StatusCode))
	}
	return out, nil
}

func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("HTTP %d - check credentials", status)
	case http.StatusTooManyRequests:
		return "rate limited (HTTP 429)"
	case http.StatusNotFound:
		return "HTTP 404 - endpoint not found"
	}
	return fmt.Sprintf("HTTP %d", status)
}

// GetJSON issues a GET and decodes a 2xx body into v.
func GetJSON(ctx context.Context, client *http.Client, url, apiKey string, headers map[string]string, v any) (Response, error) {
	req, err := CreateStandardRequest(ctx, http.MethodGet, url, apiKey, nil, headers)
	if err != nil {
		return Response{}, err
	}
	resp, err := Do(client, req)
	if err != nil {
		return resp, err
	}
	return resp, DecodeJSON(resp.Body, v)
}

// PostJSON marshals payload, posts it and decodes a 2xx body into v.
func PostJSON(ctx context.Context, client *http.Client, url, apiKey string, headers map[string]string, payload, v any) (Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}
	merged := map[string]string{"Content-Type": "application/json"}
	for k, val := range headers {
		merged[k] = val
	}
	req, err := CreateStandardRequest(ctx, http.MethodPost, url, apiKey, bytes.NewReader(data), merged)
	if err != nil {
		return Response{}, err
	}
	resp, err := Do(client, req)
	if err != nil {
		return resp, err
	}
	return resp, DecodeJSON(resp.Body, v)
}

func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return core.WrapError(core.KindUpstreamMalformed, "decoding response", err)
	}
	return nil
}

func ResolveBaseURL(cfg core.SourceConfig, defaultURL string) string {
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/")
	}
	return defaultURL
}

// Truncate limits a payload kept for diagnostics.
func Truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n]) + "..."
}
