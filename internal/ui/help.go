package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var helpTitles = []string{"Pipeline", "Commands", "Log", "General"}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	sections := m.keys.FullHelp()
	for i, bindings := range sections {
		title := "More"
		if i < len(helpTitles) {
			title = helpTitles[i]
		}
		b.WriteString(styles.AccentText.Bold(true).Render(title))
		b.WriteString("\n")

		keyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Warning)).
			Width(12)
		for _, binding := range bindings {
			if !binding.Enabled() {
				continue
			}
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}

		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// renderFooter renders the one-line key hint bar.
func (m Model) renderFooter() string {
	h := m.help
	h.Width = m.width
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning))
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Muted))
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Faint))
	return h.ShortHelpView(m.footerBindings())
}

// footerBindings hides hints for commands that do nothing right now.
func (m Model) footerBindings() []key.Binding {
	if m.modal != nil {
		return []key.Binding{m.keys.Confirm, m.keys.Cancel}
	}
	out := []key.Binding{m.keys.Select}
	if st, ok := m.cursorStage(); ok && st.Approvable() {
		out = append(out, m.keys.Approve)
	}
	if st, ok := m.skipTarget(); ok && st.Skippable() {
		out = append(out, m.keys.Skip)
	}
	if _, ok := m.session.Active(); ok {
		out = append(out, m.keys.CloseLog)
	}
	return append(out, m.keys.ToggleFollow, m.keys.Help, m.keys.Quit)
}
