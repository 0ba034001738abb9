package core

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CreditsTag prefixes detail rows that describe a credit balance rather than a model quota.
const CreditsTag = "[Credits]"

const unknownUsageDescription = "Usage unknown"

func ClampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RemainingFromCounts returns the remaining percentage of total. ok is false
// when total is not positive.
func RemainingFromCounts(used, total float64) (pct float64, ok bool) {
	if total <= 0 || math.IsNaN(total) || math.IsNaN(used) {
		return 0, false
	}
	return ClampPercent((total - used) / total * 100), true
}

func RemainingFromUsedPercent(usedPct float64) float64 {
	if math.IsNaN(usedPct) {
		return 0
	}
	return ClampPercent(100 - usedPct)
}

// RemainingFromFraction converts a 0..1 remaining fraction.
func RemainingFromFraction(fraction float64) float64 {
	return ClampPercent(fraction * 100)
}

// Window is one independently tracked rate-limit period.
type Window struct {
	Name      string
	Remaining *float64
}

// BlendWindows returns the tightest remaining percentage across windows that
// carry a value.
func BlendWindows(windows []Window) (float64, bool) {
	values := make([]*float64, 0, len(windows))
	for _, w := range windows {
		values = append(values, w.Remaining)
	}
	return MinRemaining(values)
}

// MinRemaining returns the minimum of the known values. nil entries are
// skipped; ok is false when nothing is known.
func MinRemaining(values []*float64) (float64, bool) {
	found := false
	best := 100.0
	for _, v := range values {
		if v == nil || math.IsNaN(*v) {
			continue
		}
		c := ClampPercent(*v)
		if !found || c < best {
			best = c
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// FormatPercent renders a percentage in the "12.5%" form detail parsers expect.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(ClampPercent(v), 'f', 1, 64) + "%"
}

// FormatAmount renders a count without trailing zeros: 35000, 12.5.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsPercentText reports whether s has the "^\d+(\.\d+)?%$" shape.
func IsPercentText(s string) bool {
	num, ok := strings.CutSuffix(s, "%")
	if !ok || num == "" {
		return false
	}
	whole, frac, hasFrac := strings.Cut(num, ".")
	if whole == "" || !allDigits(whole) {
		return false
	}
	return !hasFrac || (frac != "" && allDigits(frac))
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SortDetails orders credit rows first, then by name. The sort is stable so
// equal names keep adapter order.
func SortDetails(details []UsageDetail) {
	sort.SliceStable(details, func(i, j int) bool {
		ci := strings.HasPrefix(details[i].Name, CreditsTag)
		cj := strings.HasPrefix(details[j].Name, CreditsTag)
		if ci != cj {
			return ci
		}
		return details[i].Name < details[j].Name
	})
}

type TierRule struct {
	Min   float64
	Label string
}

// TierTable maps a number to the label of the highest rule whose Min it exceeds.
type TierTable struct {
	Rules   []TierRule // ordered by Min descending
	Default string
}

func (t TierTable) Lookup(v float64) string {
	for _, r := range t.Rules {
		if v > r.Min {
			return r.Label
		}
	}
	return t.Default
}

// Finalize enforces the record invariants before the record leaves the engine.
func Finalize(r UsageRecord) UsageRecord {
	out := r.Clone()
	if out.Kind == "" {
		out.Kind = RecordSummary
	}
	if out.DisplayName == "" {
		out.DisplayName = out.SourceID
	}
	if !out.Available {
		out.PercentageRemaining = 0
		out.AmountUsed = 0
		out.AmountAvailable = 0
		if out.FailureKind == "" {
			out.FailureKind = KindUnknown
		}
		if out.Description == "" {
			out.Description = "Unavailable"
		}
		return out
	}
	out.FailureKind = ""
	out.PercentageRemaining = ClampPercent(out.PercentageRemaining)
	if math.IsNaN(out.AmountUsed) {
		out.AmountUsed = 0
	}
	if math.IsNaN(out.AmountAvailable) {
		out.AmountAvailable = 0
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = unknownUsageDescription
	}
	for i, d := range out.Details {
		if strings.HasSuffix(d.Used, "%") && !IsPercentText(d.Used) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d.Used), "%")), 64); err == nil {
				out.Details[i].Used = FormatPercent(v)
			}
		}
	}
	SortDetails(out.Details)
	return out
}

// Unavailable builds the record adapters return for ordinary failures.
func Unavailable(sourceID, displayName string, err error) UsageRecord {
	r := UsageRecord{
		SourceID:    sourceID,
		DisplayName: displayName,
		Kind:        RecordSummary,
		FailureKind: KindOf(err),
		Description: "Unavailable",
	}
	if err != nil {
		r.Description = err.Error()
		var fe *FetchError
		if errors.As(err, &fe) {
			r.HTTPStatus = fe.Status
		}
	}
	return r
}

// UnknownUsage builds an available record for a reachable source that
// reported no usable quota fields.
func UnknownUsage(sourceID, displayName string, plan PlanKind) UsageRecord {
	return UsageRecord{
		SourceID:     sourceID,
		DisplayName:  displayName,
		Kind:         RecordSummary,
		State:        StateUnknown,
		Available:    true,
		PlanKind:     plan,
		IsQuotaBased: plan == PlanCoding,
		UsageUnit:    "Quota %",
		Description:  unknownUsageDescription,
	}
}
