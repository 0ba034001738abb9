package core

import (
	"testing"
	"time"
)

var resetNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestResetFromUnix_SecondsAndMillisecondsAgree(t *testing.T) {
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	fromSeconds := ResetFromUnix(want.Unix(), resetNow)
	fromMillis := ResetFromUnix(want.UnixMilli(), resetNow)
	if fromSeconds == nil || fromMillis == nil {
		t.Fatalf("ResetFromUnix returned nil: seconds=%v millis=%v", fromSeconds, fromMillis)
	}
	if !fromSeconds.Equal(want) || !fromMillis.Equal(want) {
		t.Errorf("seconds=%v millis=%v, want %v", fromSeconds, fromMillis, want)
	}
}

func TestResetFromUnix_Threshold(t *testing.T) {
	farNow := time.Unix(0, 0)

	below := ResetFromUnix(MillisecondThreshold-1, farNow)
	if below == nil || below.Unix() != MillisecondThreshold-1 {
		t.Errorf("value below threshold not read as seconds: %v", below)
	}

	at := ResetFromUnix(MillisecondThreshold, farNow)
	if at == nil || at.UnixMilli() != MillisecondThreshold {
		t.Errorf("value at threshold not read as milliseconds: %v", at)
	}
}

func TestResetFromUnix_DiscardsPastAndNonPositive(t *testing.T) {
	for _, v := range []int64{0, -1, resetNow.Unix(), resetNow.Add(-time.Hour).Unix(), resetNow.Add(-time.Hour).UnixMilli()} {
		if got := ResetFromUnix(v, resetNow); got != nil {
			t.Errorf("ResetFromUnix(%d) = %v, want nil", v, got)
		}
	}
}

func TestResetFromISO(t *testing.T) {
	got := ResetFromISO("2026-03-01T18:30:00Z", resetNow)
	if got == nil || !got.Equal(time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)) {
		t.Fatalf("ResetFromISO = %v", got)
	}
	if got.Location() != time.Local {
		t.Errorf("reset not converted to host-local time: %v", got.Location())
	}
	if ResetFromISO("2026-02-01T00:00:00Z", resetNow) != nil {
		t.Error("past ISO reset was kept")
	}
	if ResetFromISO("not a date", resetNow) != nil {
		t.Error("garbage parsed as a reset")
	}
}

func TestResetFromRelative_AnchorsToNow(t *testing.T) {
	got := ResetFromRelative(90, resetNow)
	if got == nil || !got.Equal(resetNow.Add(90*time.Second)) {
		t.Errorf("ResetFromRelative(90) = %v", got)
	}
	if ResetFromRelative(0, resetNow) != nil || ResetFromRelative(-5, resetNow) != nil {
		t.Error("non-positive relative reset was kept")
	}
}

func TestResolveReset(t *testing.T) {
	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
	}{
		{"json number seconds", float64(want.Unix())},
		{"json number millis", float64(want.UnixMilli())},
		{"numeric string", "1772668800"},
		{"iso string", "2026-03-05T00:00:00Z"},
		{"int64", want.Unix()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveReset(tt.in, resetNow)
			if got == nil || !got.Equal(want) {
				t.Errorf("ResolveReset(%v) = %v, want %v", tt.in, got, want)
			}
		})
	}
	if ResolveReset(nil, resetNow) != nil || ResolveReset(true, resetNow) != nil {
		t.Error("unsupported values resolved")
	}
}

func TestEarliestReset(t *testing.T) {
	a := resetNow.Add(time.Hour)
	b := resetNow.Add(time.Minute)
	got := EarliestReset(&a, nil, &b)
	if got == nil || !got.Equal(b) {
		t.Errorf("EarliestReset = %v, want %v", got, b)
	}
	if EarliestReset(nil, nil) != nil {
		t.Error("EarliestReset of nils is not nil")
	}
}

func TestWindowLabel(t *testing.T) {
	tests := map[time.Duration]string{
		0:                  "",
		45 * time.Minute:   "45m",
		5 * time.Hour:      "5h",
		90 * time.Minute:   "1h30m",
		24 * time.Hour:     "1d",
		7 * 24 * time.Hour: "7d",
		36 * time.Hour:     "1d12h",
	}
	for in, want := range tests {
		if got := WindowLabel(in); got != want {
			t.Errorf("WindowLabel(%v) = %q, want %q", in, got, want)
		}
	}
}
