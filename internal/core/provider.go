package core

import (
	"context"
	"os"
	"strings"
)

func (c SourceConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

type SourceInfo struct {
	Name         string   // e.g. "OpenAI", "Antigravity"
	Plan         PlanKind // default plan kind of records this source produces
	Capabilities []string // "http", "local_process", "credential_file", "cli"
	DocURL       string
}

// UsageSource is implemented once per upstream. Fetch reports ordinary
// unavailability as Available=false records; a returned error is treated by
// the engine like a crash of the adapter.
type UsageSource interface {
	ID() string

	Describe() SourceInfo

	Fetch(ctx context.Context, cfg SourceConfig) ([]UsageRecord, error)
}
