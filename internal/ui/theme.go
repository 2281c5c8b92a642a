package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/pipeview/internal/pipeline"
)

// Theme is a named palette. Stage boxes, badges and log gutters all derive
// their colours from it.
type Theme struct {
	Name string

	Background  string
	Surface     string // header and footer bars
	Border      string
	BorderFocus string // stage under the cursor

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors maps a status label ("running", "rolling back") to the
	// badge colour used for both stages and the deployment.
	StatusColors map[string]string
}

// StatusColor returns the colour for a status label, falling back to Muted.
func (t Theme) StatusColor(label string) string {
	if c, ok := t.StatusColors[label]; ok {
		return c
	}
	return t.Muted
}

// StageColor returns the colour of a stage status.
func (t Theme) StageColor(status pipeline.StageStatus) string {
	return t.StatusColor(status.Label())
}

// Styles builds the text and component styles on a transparent background.
func (t Theme) Styles() Styles {
	return t.stylesOn("")
}

func (t Theme) stylesOn(bg string) Styles {
	fg := func(color string) lipgloss.Style {
		s := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		if bg != "" {
			s = s.Background(lipgloss.Color(bg))
		}
		return s
	}
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),
		Logo:        fg(t.Warning).Bold(true),
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		theme: t,
	}
}

// Styles holds the pre-built styles of one theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header lipgloss.Style
	Logo   lipgloss.Style

	theme Theme
}

// StatusStyle renders a status label as a solid badge.
func (s Styles) StatusStyle(label string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.theme.Background)).
		Background(lipgloss.Color(s.theme.StatusColor(label))).
		Padding(0, 1)
}

// WithBackground returns the same styles painted on bgColor, for text that
// sits inside a coloured bar.
func (s Styles) WithBackground(bgColor string) Styles {
	return s.theme.stylesOn(bgColor)
}

// statusColors assigns badge colours in pipeline order: idle, planned,
// running, rolling back, success, failure, cancelled, skipped, exited.
func statusColors(idle, planned, running, rollback, success, failure, cancelled, skipped, exited string) map[string]string {
	return map[string]string{
		"not started":  idle,
		"pending":      idle,
		"planned":      planned,
		"running":      running,
		"rolling back": rollback,
		"success":      success,
		"failure":      failure,
		"cancelled":    cancelled,
		"skipped":      skipped,
		"exited":       exited,
	}
}

// themes lists the palettes in the order T cycles through them. The first
// entry is the fallback for unknown names.
var themes = []Theme{
	{
		// https://github.com/EdenEast/nightfox.nvim
		Name: "Nightfox",
		Background: "#131a24", Surface: "#192330",
		Border: "#39506d", BorderFocus: "#719cd6",
		Text: "#cdcecf", Muted: "#738091", Faint: "#71839b", Accent: "#719cd6",
		Success: "#81b29a", Warning: "#dbc074", Danger: "#c94f6d", Info: "#63cdcf",
		StatusColors: statusColors("#738091", "#71839b", "#719cd6", "#f4a261",
			"#81b29a", "#c94f6d", "#dbc074", "#9d79d6", "#63cdcf"),
	},
	{
		// https://github.com/rebelot/kanagawa.nvim
		Name: "Kanagawa",
		Background: "#16161D", Surface: "#1F1F28",
		Border: "#54546D", BorderFocus: "#7E9CD8",
		Text: "#DCD7BA", Muted: "#C8C093", Faint: "#727169", Accent: "#7E9CD8",
		Success: "#98BB6C", Warning: "#E6C384", Danger: "#E46876", Info: "#7FB4CA",
		StatusColors: statusColors("#727169", "#C8C093", "#7E9CD8", "#FFA066",
			"#98BB6C", "#E46876", "#E6C384", "#957FB8", "#7FB4CA"),
	},
	{
		// Tailwind slate and sky
		Name: "Slate",
		Background: "#020617", Surface: "#0f172a",
		Border: "#334155", BorderFocus: "#38bdf8",
		Text: "#f1f5f9", Muted: "#94a3b8", Faint: "#64748b", Accent: "#38bdf8",
		Success: "#22c55e", Warning: "#f59e0b", Danger: "#ef4444", Info: "#06b6d4",
		StatusColors: statusColors("#64748b", "#94a3b8", "#38bdf8", "#f97316",
			"#22c55e", "#dc2626", "#f59e0b", "#a78bfa", "#06b6d4"),
	},
}

// GetTheme returns the theme called name, or the first theme.
func GetTheme(name string) Theme {
	for _, t := range themes {
		if t.Name == name {
			return t
		}
	}
	return themes[0]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, t := range themes {
		if t.Name == current {
			return themes[(i+1)%len(themes)].Name
		}
	}
	return themes[0].Name
}

// ThemeNames returns the theme names in cycle order.
func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}
