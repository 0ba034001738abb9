package providerbase

import (
	"github.com/janekbaraniewski/aiusage/internal/core"
)

// Base centralizes source metadata and the record constructors every adapter
// shares. Source packages embed this and implement only Fetch().
type Base struct {
	spec core.SourceSpec
}

func New(spec core.SourceSpec) Base {
	normalized := spec
	if normalized.ID == "" {
		normalized.ID = "unknown"
	}
	if normalized.Info.Name == "" {
		normalized.Info.Name = normalized.ID
	}
	if normalized.Info.Plan == "" {
		normalized.Info.Plan = core.PlanUsage
	}
	return Base{spec: normalized}
}

func (b Base) ID() string {
	return b.spec.ID
}

func (b Base) Describe() core.SourceInfo {
	return b.spec.Info
}

func (b Base) Spec() core.SourceSpec {
	return b.spec
}

// SourceID is the configured id, which differs from ID() for aliases and
// configs served by the generic fallback.
func (b Base) SourceID(cfg core.SourceConfig) string {
	if cfg.SourceID != "" {
		return cfg.SourceID
	}
	return b.spec.ID
}

// NewRecord returns an available summary record with the source defaults filled in.
func (b Base) NewRecord(cfg core.SourceConfig) core.UsageRecord {
	return core.UsageRecord{
		SourceID:     b.SourceID(cfg),
		DisplayName:  b.spec.Info.Name,
		Kind:         core.RecordSummary,
		Available:    true,
		PlanKind:     b.spec.Info.Plan,
		IsQuotaBased: b.spec.Info.Plan == core.PlanCoding,
		AuthSource:   cfg.AuthSource,
	}
}

// Unavailable wraps err into the single record an adapter returns on failure.
func (b Base) Unavailable(cfg core.SourceConfig, err error) []core.UsageRecord {
	r := core.Unavailable(b.SourceID(cfg), b.spec.Info.Name, err)
	r.PlanKind = b.spec.Info.Plan
	r.AuthSource = cfg.AuthSource
	return []core.UsageRecord{r}
}

// RequireAPIKey resolves the key from the config, then from the source's
// default environment variable. On failure it returns the records to hand back.
func (b Base) RequireAPIKey(cfg core.SourceConfig) (string, []core.UsageRecord) {
	if key := cfg.ResolveAPIKey(); key != "" {
		return key, nil
	}
	if env := b.spec.Auth.APIKeyEnv; env != "" && cfg.APIKeyEnv != env {
		fallback := cfg
		fallback.APIKeyEnv = env
		if key := fallback.ResolveAPIKey(); key != "" {
			return key, nil
		}
	}
	hint := "configure a key"
	if b.spec.Auth.APIKeyEnv != "" {
		hint = "set " + b.spec.Auth.APIKeyEnv + " or configure a key"
	}
	return "", b.Unavailable(cfg, core.Errorf(core.KindConfigMissing, "API key not configured (%s)", hint))
}
