package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/five82/pipeview/internal/pipeline"
)

const (
	stageInnerWidth = 22
	// stageColumnWidth is the rendered box plus its border.
	stageColumnWidth = stageInnerWidth + 2
	connector        = " ─▶ "
)

var stageIcons = map[pipeline.StageStatus]string{
	pipeline.StageNotStarted: "○",
	pipeline.StageRunning:    "●",
	pipeline.StageSuccess:    "✓",
	pipeline.StageFailure:    "✗",
	pipeline.StageCancelled:  "⊘",
	pipeline.StageSkipped:    "»",
	pipeline.StageExited:     "↩",
}

// renderPipeline draws the visible stages as columns, one per layer, and
// scrolls horizontally to keep the cursor column on screen.
func (m Model) renderPipeline() string {
	styles := m.theme.Styles()
	g := m.session.Graph()
	if len(g.Layers) == 0 {
		if !m.session.Loaded() {
			return styles.MutedText.Render("Waiting for deployment…")
		}
		return styles.MutedText.Render("No visible stages")
	}

	first, last := m.visibleColumns(len(g.Layers))
	active, hasActive := m.session.Active()
	connW := lipgloss.Width(connector)
	arrow := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Border)).Render("\n" + connector)

	cols := make([]string, 0, (last-first)*2+2)
	if first > 0 {
		cols = append(cols, styles.FaintText.Render("\n‹ "))
	}
	for c := first; c < last; c++ {
		if c > first {
			cols = append(cols, lipgloss.NewStyle().Width(connW).Render(arrow))
		}
		layer := g.Layers[c]
		boxes := make([]string, len(layer))
		for r, st := range layer {
			cursor := c == m.cursorCol && r == m.cursorRow
			isActive := hasActive && st.ID == active.StageID
			boxes[r] = m.renderStageBox(st, cursor, isActive)
		}
		cols = append(cols, lipgloss.JoinVertical(lipgloss.Left, boxes...))
	}
	if last < len(g.Layers) {
		cols = append(cols, styles.FaintText.Render("\n ›"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// visibleColumns returns the half-open range of layers that fit the width.
func (m Model) visibleColumns(total int) (int, int) {
	connW := lipgloss.Width(connector)
	fit := (m.width - 4 + connW) / (stageColumnWidth + connW)
	if fit < 1 {
		fit = 1
	}
	if fit >= total {
		return 0, total
	}
	first := 0
	if m.cursorCol >= fit {
		first = m.cursorCol - fit + 1
	}
	return first, first + fit
}

func (m Model) renderStageBox(st pipeline.Stage, cursor, active bool) string {
	styles := m.theme.Styles()
	color := lipgloss.Color(m.theme.StageColor(st.Status))

	icon := stageIcons[st.Status]
	if icon == "" {
		icon = "?"
	}
	name := ansi.Truncate(displayName(st), stageInnerWidth-2, "…")
	lines := []string{
		lipgloss.NewStyle().Foreground(color).Render(icon) + " " + styles.Text.Bold(active).Render(name),
		lipgloss.NewStyle().Foreground(color).Render(st.Status.Label()),
	}
	if extra := stageNote(st); extra != "" {
		lines = append(lines, styles.MutedText.Render(ansi.Truncate(extra, stageInnerWidth, "…")))
	}

	border := lipgloss.RoundedBorder()
	if active {
		border = lipgloss.ThickBorder()
	}
	borderColor := m.theme.Border
	switch {
	case cursor:
		borderColor = m.theme.BorderFocus
	case active:
		borderColor = m.theme.Accent
	}
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(lipgloss.Color(borderColor)).
		Width(stageInnerWidth).
		Render(strings.Join(lines, "\n"))
}

// stageNote is the optional third line of a stage box.
func stageNote(st pipeline.Stage) string {
	switch {
	case st.Kind == pipeline.KindApproval && st.Approver() != "":
		return "approved by " + st.Approver()
	case st.Approvable():
		return "waiting for approval"
	case st.Skippable():
		return "skippable"
	case st.Status == pipeline.StageFailure && st.StatusReason != "":
		return st.StatusReason
	}
	return ""
}

// graphDiagnostic describes stages the layering left out, if any.
func graphDiagnostic(g pipeline.Graph) string {
	if len(g.Unplaced) == 0 {
		return ""
	}
	return fmt.Sprintf("%d stage(s) not shown, unresolved requires: %s", len(g.Unplaced), strings.Join(g.Unplaced, ", "))
}
