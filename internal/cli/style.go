package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dcg-tools/dcg/internal/pack"
)

var (
	styleAllow    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleDeny     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleHeading  = lipgloss.NewStyle().Bold(true).Underline(true)
	severityColor = map[pack.Severity]lipgloss.Color{
		pack.SeverityCritical: lipgloss.Color("196"),
		pack.SeverityHigh:     lipgloss.Color("208"),
		pack.SeverityMedium:   lipgloss.Color("220"),
		pack.SeverityLow:      lipgloss.Color("245"),
	}
)

// colorEnabled reports whether output should carry ANSI styling, per
// the color.{auto,always,never} config key and robot mode from spec
// §6 (robot implies never).
func colorEnabled(color string, robot bool) bool {
	if robot {
		return false
	}
	switch color {
	case "always":
		return true
	case "never":
		return false
	default:
		return true
	}
}

func renderSeverity(s pack.Severity, enabled bool) string {
	if !enabled {
		return string(s)
	}
	c, ok := severityColor[s]
	if !ok {
		return string(s)
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(string(s))
}

func renderDecision(allow bool, enabled bool) string {
	if !enabled {
		if allow {
			return "allow"
		}
		return "deny"
	}
	if allow {
		return styleAllow.Render("allow")
	}
	return styleDeny.Render("deny")
}
