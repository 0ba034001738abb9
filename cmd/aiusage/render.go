package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

const (
	warnThreshold = 20.0
	critThreshold = 5.0
	gaugeWidth    = 20
	nameWidth     = 28
)

var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorDim     = lipgloss.Color("#585B70")
	colorGreen   = lipgloss.Color("#A6E3A1")
	colorYellow  = lipgloss.Color("#F9E2AF")
	colorRed     = lipgloss.Color("#F38BA8")
	colorPeach   = lipgloss.Color("#FAB387")
	colorLav     = lipgloss.Color("#B4BEFE")

	nameStyle   = lipgloss.NewStyle().Foreground(colorLav).Bold(true).Width(nameWidth)
	modelStyle  = lipgloss.NewStyle().Foreground(colorSubtext).Width(nameWidth).PaddingLeft(2)
	descStyle   = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	detailStyle = lipgloss.NewStyle().Foreground(colorSubtext).PaddingLeft(4)
	errStyle    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	authStyle   = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(colorYellow)
)

func writeJSON(w io.Writer, records []core.UsageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// renderGauge draws a remaining-percentage bar; green above the warning
// threshold, yellow above the critical one, red below.
func renderGauge(percent float64, width int) string {
	percent = core.ClampPercent(percent)
	filled := int(percent / 100 * float64(width))

	var color lipgloss.Color
	switch {
	case percent <= critThreshold:
		color = colorRed
	case percent <= warnThreshold:
		color = colorYellow
	default:
		color = colorGreen
	}

	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("━", width-filled))
	return bar + " " + lipgloss.NewStyle().Foreground(color).Bold(true).Render(fmt.Sprintf("%5.1f%%", percent))
}

func renderRecords(w io.Writer, records []core.UsageRecord, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No sources configured. Set an API key or run `aiusage sources`."))
		return
	}
	for _, r := range records {
		fmt.Fprintln(w, renderRecord(r, now))
		for _, d := range r.Details {
			fmt.Fprintln(w, renderDetail(d))
		}
	}
}

func renderRecord(r core.UsageRecord, now time.Time) string {
	label := r.DisplayName
	style := nameStyle
	if r.Kind == core.RecordExpansion {
		label = r.Model
		style = modelStyle
	} else if r.AccountIdentity != "" {
		label += " · " + r.AccountIdentity
	}

	var status string
	switch {
	case !r.Available && r.FailureKind == core.KindConfigMissing:
		status = authStyle.Render("not configured")
	case !r.Available:
		status = errStyle.Render("unavailable")
	case r.State == core.StateUnknown:
		status = dimStyle.Render(strings.Repeat("─", gaugeWidth) + "   N/A")
	default:
		status = renderGauge(r.PercentageRemaining, gaugeWidth)
	}

	desc := descStyle.Render(r.Description)
	if r.State == core.StateStale {
		desc = staleStyle.Render(r.Description)
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, style.Render(label), status, "  ", desc)
	if r.NextResetTime != nil && r.NextResetTime.After(now) {
		line += dimStyle.Render("  resets in " + formatUntil(r.NextResetTime.Sub(now)))
	}
	return line
}

func renderDetail(d core.UsageDetail) string {
	name := d.Name
	if d.ModelName != "" && d.ModelName != d.Name {
		name += " (" + d.ModelName + ")"
	}
	text := fmt.Sprintf("%s: %s", name, d.Used)
	if d.Description != "" {
		text += " " + d.Description
	}
	return detailStyle.Render(text)
}

func formatUntil(d time.Duration) string {
	d = d.Round(time.Minute)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
