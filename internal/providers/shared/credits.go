package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/parsers"
)

type CreditShape string

const (
	ShapeSubscription CreditShape = "subscription"
	ShapeCredits      CreditShape = "credits"
	ShapeBalance      CreditShape = "balance"
)

// CreditSnapshot is the common reading of the credit and subscription
// payloads served by pay-as-you-go upstreams.
type CreditSnapshot struct {
	Shape CreditShape
	Used  float64
	Total float64
	Reset *time.Time
}

func (s CreditSnapshot) Remaining() float64 {
	return s.Total - s.Used
}

var (
	subscriptionPaths = []string{"subscription", "data.subscription", ""}
	creditPaths       = []string{"data", ""}
)

type subscriptionPayload struct {
	Limit    parsers.FlexFloat `json:"limit"`
	Requests parsers.FlexFloat `json:"requests"`
	RenewsAt any               `json:"renewsAt"`
}

type creditsPayload struct {
	TotalCredits     parsers.FlexFloat `json:"total_credits"`
	UsedCredits      parsers.FlexFloat `json:"used_credits"`
	TotalUsage       parsers.FlexFloat `json:"total_usage"`
	RemainingCredits parsers.FlexFloat `json:"remaining_credits"`
}

type balancePayload struct {
	AvailableBalance parsers.FlexFloat `json:"available_balance"`
	Balance          parsers.FlexFloat `json:"balance"`
}

// ParseSubscription reads {subscription:{limit, requests, renewsAt}} wherever
// it is nested.
func ParseSubscription(body []byte, now time.Time) (CreditSnapshot, error) {
	raw, _, ok := parsers.FirstObject(body, subscriptionPaths, "limit", "requests")
	if !ok {
		return CreditSnapshot{}, core.Errorf(core.KindUpstreamMalformed, "response has no subscription object")
	}
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return CreditSnapshot{}, core.WrapError(core.KindUpstreamMalformed, "decoding subscription", err)
	}
	if !sub.Limit.Valid {
		return CreditSnapshot{}, core.Errorf(core.KindUpstreamMalformed, "subscription has no limit")
	}
	return CreditSnapshot{
		Shape: ShapeSubscription,
		Used:  sub.Requests.Value,
		Total: sub.Limit.Value,
		Reset: core.ResolveReset(sub.RenewsAt, now),
	}, nil
}

// ParseCredits reads {data:{total_credits, used_credits}} and its variants.
func ParseCredits(body []byte) (CreditSnapshot, error) {
	raw, _, ok := parsers.FirstObject(body, creditPaths, "total_credits", "used_credits", "remaining_credits")
	if !ok {
		return CreditSnapshot{}, core.Errorf(core.KindUpstreamMalformed, "response has no credit fields")
	}
	var c creditsPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return CreditSnapshot{}, core.WrapError(core.KindUpstreamMalformed, "decoding credits", err)
	}
	used := c.UsedCredits
	if !used.Valid {
		used = c.TotalUsage
	}
	total := c.TotalCredits.Value
	if !c.TotalCredits.Valid && c.RemainingCredits.Valid {
		total = c.RemainingCredits.Value + used.Value
	}
	if !used.Valid && c.RemainingCredits.Valid && c.TotalCredits.Valid {
		used.Value = c.TotalCredits.Value - c.RemainingCredits.Value
	}
	return CreditSnapshot{Shape: ShapeCredits, Used: used.Value, Total: total}, nil
}

// ParseBalance reads {data:{available_balance}}, a balance with no ceiling.
func ParseBalance(body []byte) (CreditSnapshot, error) {
	raw, _, ok := parsers.FirstObject(body, creditPaths, "available_balance", "balance")
	if !ok {
		return CreditSnapshot{}, core.Errorf(core.KindUpstreamMalformed, "response has no balance field")
	}
	var b balancePayload
	if err := json.Unmarshal(raw, &b); err != nil {
		return CreditSnapshot{}, core.WrapError(core.KindUpstreamMalformed, "decoding balance", err)
	}
	balance := b.AvailableBalance
	if !balance.Valid {
		balance = b.Balance
	}
	return CreditSnapshot{Shape: ShapeBalance, Total: balance.Value}, nil
}

// ParseAnyCredits tries the subscription, credits and balance shapes in order.
func ParseAnyCredits(body []byte, now time.Time) (CreditSnapshot, error) {
	if snap, err := ParseSubscription(body, now); err == nil {
		return snap, nil
	}
	if snap, err := ParseCredits(body); err == nil {
		return snap, nil
	}
	if snap, err := ParseBalance(body); err == nil {
		return snap, nil
	}
	return CreditSnapshot{}, core.Errorf(core.KindUpstreamMalformed, "response matches no known credit format")
}

// DescribeCredits renders "35000 / 135000 credits (Resets: Mar 5 00:00)".
func DescribeCredits(used, total float64, reset *time.Time) string {
	desc := fmt.Sprintf("%s / %s credits", core.FormatAmount(used), core.FormatAmount(total))
	if reset != nil {
		desc += " (Resets: " + reset.Format("Jan 2 15:04") + ")"
	}
	return desc
}

// ApplyCredits fills the quantitative fields of r from snap.
func ApplyCredits(r *core.UsageRecord, snap CreditSnapshot) {
	r.UsageUnit = "Credits"
	switch snap.Shape {
	case ShapeBalance:
		r.AmountAvailable = snap.Total
		r.PercentageRemaining = 100
		r.IsQuotaBased = false
		r.PlanKind = core.PlanUsage
		r.Description = fmt.Sprintf("Balance: %.2f", snap.Total)
		return
	case ShapeSubscription:
		r.PlanKind = core.PlanCoding
		r.IsQuotaBased = true
	}
	r.AmountUsed = snap.Used
	r.AmountAvailable = snap.Total
	r.DisplayAsFraction = true
	r.NextResetTime = snap.Reset
	if pct, ok := core.RemainingFromCounts(snap.Used, snap.Total); ok {
		r.PercentageRemaining = pct
	}
	r.Description = DescribeCredits(snap.Used, snap.Total, snap.Reset)
}
