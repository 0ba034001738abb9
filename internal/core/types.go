package core

import (
	"slices"
	"time"
)

type PlanKind string

const (
	PlanUsage  PlanKind = "usage"  // pay-as-you-go / spend based
	PlanCoding PlanKind = "coding" // quota or rate-limit based
)

type RecordKind string

const (
	RecordSummary   RecordKind = "summary"
	RecordExpansion RecordKind = "expansion"
)

// RecordState tells consumers whether the numbers come from the current poll.
type RecordState string

const (
	StateFresh   RecordState = ""
	StateStale   RecordState = "stale"
	StateUnknown RecordState = "unknown"
)

type UsageDetail struct {
	Name          string     `json:"name"`
	ModelName     string     `json:"model_name,omitempty"`
	GroupName     string     `json:"group_name,omitempty"`
	Used          string     `json:"used"` // "42.0%" or free text such as "150.50 CNY"
	Description   string     `json:"description,omitempty"`
	NextResetTime *time.Time `json:"next_reset_time,omitempty"`
}

// UsageRecord is one normalized snapshot for one account, or for one model of
// an account when Kind is RecordExpansion.
type UsageRecord struct {
	SourceID        string      `json:"source_id"`
	DisplayName     string      `json:"display_name"`
	AccountIdentity string      `json:"account_identity,omitempty"`
	Model           string      `json:"model,omitempty"`
	Kind            RecordKind  `json:"kind"`
	State           RecordState `json:"state,omitempty"`

	Available           bool     `json:"available"`
	PlanKind            PlanKind `json:"plan_kind"`
	IsQuotaBased        bool     `json:"is_quota_based"`
	PercentageRemaining float64  `json:"percentage_remaining"`
	AmountUsed          float64  `json:"amount_used"`
	AmountAvailable     float64  `json:"amount_available"`
	UsageUnit           string   `json:"usage_unit"`
	DisplayAsFraction   bool     `json:"display_as_fraction"`

	Description   string        `json:"description"`
	NextResetTime *time.Time    `json:"next_reset_time,omitempty"`
	Details       []UsageDetail `json:"details,omitempty"`

	FailureKind ErrorKind `json:"failure_kind,omitempty"`
	AuthSource  string    `json:"auth_source,omitempty"`
	HTTPStatus  int       `json:"http_status,omitempty"`
	RawPayload  string    `json:"raw_payload,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Clone returns a copy that shares no memory with r.
func (r UsageRecord) Clone() UsageRecord {
	out := r
	out.NextResetTime = cloneTime(r.NextResetTime)
	if r.Details != nil {
		out.Details = make([]UsageDetail, len(r.Details))
		for i, d := range r.Details {
			d.NextResetTime = cloneTime(d.NextResetTime)
			out.Details[i] = d
		}
	}
	return out
}

// Key identifies a record for deduplication.
func (r UsageRecord) Key() string {
	return r.SourceID + "\x00" + r.AccountIdentity + "\x00" + r.Model
}

func (r UsageRecord) IsSummary() bool {
	return r.Kind != RecordExpansion
}

// ResetTimes returns every known reset instant on the record and its details.
func (r UsageRecord) ResetTimes() []time.Time {
	var out []time.Time
	if r.NextResetTime != nil {
		out = append(out, *r.NextResetTime)
	}
	for _, d := range r.Details {
		if d.NextResetTime != nil {
			out = append(out, *d.NextResetTime)
		}
	}
	return out
}

type ModelAlias struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SourceConfig is the input handed to every adapter.
type SourceConfig struct {
	SourceID     string                `json:"source_id"`
	Type         string                `json:"type,omitempty"` // "api", "pay-as-you-go", "quota", "oauth", "local"
	APIKey       string                `json:"-"`
	APIKeyEnv    string                `json:"api_key_env,omitempty"`
	BaseURL      string                `json:"base_url,omitempty"`
	AuthSource   string                `json:"auth_source,omitempty"`
	ModelAliases map[string]ModelAlias `json:"model_aliases,omitempty"`
	Extra        map[string]string     `json:"extra,omitempty"`
}

// ResolveAlias maps a raw upstream model label to its configured id and name.
// Unknown labels map to themselves.
func (c SourceConfig) ResolveAlias(label string) ModelAlias {
	if alias, ok := c.ModelAliases[label]; ok {
		if alias.Name == "" {
			alias.Name = label
		}
		if alias.ID == "" {
			alias.ID = label
		}
		return alias
	}
	return ModelAlias{ID: label, Name: label}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CloneRecords deep-copies a record slice.
func CloneRecords(records []UsageRecord) []UsageRecord {
	if records == nil {
		return nil
	}
	out := slices.Clone(records)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}
