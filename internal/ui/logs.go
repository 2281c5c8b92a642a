package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/pipeview/internal/ansilog"
	"github.com/five82/pipeview/internal/stagelog"
)

const gutterWidth = 6

// refreshLog re-renders the active stage's log into the viewport.
func (m *Model) refreshLog() {
	if m.logViewport.Width == 0 {
		return
	}
	lg, ok := m.session.ActiveLog()
	if !ok {
		m.logViewport.SetContent("")
		m.logViewport.GotoTop()
		return
	}
	m.logViewport.SetContent(m.renderLogLines(lg, m.logViewport.Width))
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogLines renders one wrapped line per block, prefixed by the block
// number in the block's severity color.
func (m Model) renderLogLines(lg stagelog.StageLog, width int) string {
	styles := m.theme.Styles()
	if len(lg.Cells) == 0 {
		switch {
		case lg.Err != nil:
			return lipgloss.JoinVertical(lipgloss.Left,
				styles.MutedText.Render("No log available yet"),
				styles.FaintText.Render(fmt.Sprintf("retry %d: %v", lg.Retries, lg.Err)))
		case lg.Loading:
			return styles.MutedText.Render("Loading log…")
		default:
			return styles.MutedText.Render("No log output")
		}
	}

	textWidth := max(width-gutterWidth, 10)
	wrap := lipgloss.NewStyle().Width(textWidth)
	lines := make([]string, 0, len(lg.Cells))
	for i, cells := range lg.Cells {
		block := lg.Blocks[i]
		gutter := lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.severityColor(block.Severity))).
			Width(gutterWidth).
			Render(fmt.Sprintf("%4d", block.Index+1))

		var b strings.Builder
		for _, c := range cells {
			b.WriteString(m.cellStyle(c).Render(c.Text))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, gutter, wrap.Render(b.String())))
	}
	return strings.Join(lines, "\n")
}

// cellStyle maps a decoded cell onto the terminal palette. Default colors are
// left to the theme.
func (m Model) cellStyle(c ansilog.Cell) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Text))
	if c.Foreground != ansilog.DefaultForeground {
		style = style.Foreground(lipgloss.ANSIColor(c.Foreground))
	}
	if c.Background != ansilog.DefaultBackground {
		style = style.Background(lipgloss.ANSIColor(c.Background))
	}
	return style.Bold(c.Bold).Underline(c.Underline)
}

func (m Model) severityColor(s stagelog.Severity) string {
	switch s {
	case stagelog.SeveritySuccess:
		return m.theme.Success
	case stagelog.SeverityError:
		return m.theme.Danger
	default:
		return m.theme.Faint
	}
}

// renderLogPanel renders the title bar and the viewport of the active log.
func (m Model) renderLogPanel() string {
	styles := m.theme.Styles()
	st, ok := m.session.ActiveStage()
	if !ok {
		return styles.MutedText.Render("Select a stage with enter to show its log.")
	}
	lg, _ := m.session.ActiveLog()

	parts := []string{
		styles.AccentText.Bold(true).Render(displayName(st)),
		lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StageColor(st.Status))).Render(st.Status.Label()),
		styles.MutedText.Render(fmt.Sprintf("%d lines", len(lg.Blocks))),
	}
	if lg.Polling {
		parts = append(parts, styles.InfoText.Render("live"))
	}
	if lg.Err != nil && len(lg.Cells) > 0 {
		parts = append(parts, styles.DangerText.Render(fmt.Sprintf("retry %d", lg.Retries)))
	}
	if m.follow {
		parts = append(parts, styles.SuccessText.Render("following"))
	} else {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("paused %3.0f%%", m.logViewport.ScrollPercent()*100)))
	}
	title := strings.Join(parts, styles.FaintText.Render(" · "))
	return lipgloss.JoinVertical(lipgloss.Left, title, m.logViewport.View())
}
