package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/pipeview/internal/approval"
	"github.com/five82/pipeview/internal/pipeline"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmModal holds an approve or skip request until the user answers.
type confirmModal struct {
	flow         *approval.Flow
	stage        pipeline.Stage
	deploymentID string
	send         func(approval.Command) tea.Cmd
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Confirm):
		cmd, ok := c.flow.Confirm(c.deploymentID)
		if !ok {
			return nil, nil, true
		}
		return nil, c.send(cmd), true
	case key.Matches(km, keys.Cancel):
		c.flow.Cancel()
		return nil, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	verb := c.flow.Action().String()

	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render(strings.ToUpper(verb[:1]) + verb[1:] + " stage"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(fmt.Sprintf("%s %s?", verb, displayName(c.stage))))
	b.WriteString("\n")
	if c.stage.Desc != "" {
		b.WriteString(styles.MutedText.Render(c.stage.Desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Render("y"))
	b.WriteString(styles.MutedText.Render(" confirm   "))
	b.WriteString(styles.AccentText.Render("n"))
	b.WriteString(styles.MutedText.Render(" cancel"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Warning)).
		Padding(1, 2).
		Width(min(50, max(width-4, 20))).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

// displayName returns the stage name, or its id when unnamed.
func displayName(st pipeline.Stage) string {
	if st.Name != "" {
		return st.Name
	}
	return st.ID
}
