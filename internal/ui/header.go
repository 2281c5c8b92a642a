package ui

import (
	"fmt"
	"strings"
	"time"
)

// renderHeader renders the status bar: deployment identity on the left,
// connection state on the right.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	b := newBar(m.theme.Surface).Left("pipeview", styles.Logo)
	inner := max(m.width-2, 0)

	if !m.snapshot.HasDeployment {
		if err := m.snapshot.LastError; err != nil {
			b.Left("API "+classifyConnectionError(err), styles.DangerText.Bold(true)).
				Left("Retrying...", styles.WarningText.Bold(true))
		} else {
			b.Left("Connecting...", styles.MutedText)
		}
		b.Left(m.deploymentID, styles.FaintText)
		return styles.Header.Width(m.width).Render(b.Render(inner))
	}

	d := m.session.Deployment()
	name := d.ApplicationName
	if name == "" {
		name = d.ApplicationID
	}
	b.Left(name, styles.Text.Bold(true)).
		Left(d.ID, styles.MutedText).
		LeftRaw(styles.StatusStyle(d.Status.Label()).Render(strings.ToUpper(d.Status.Label()))).
		Left(truncateMiddle(d.Summary, 40), styles.FaintText)

	if m.snapshot.IsOffline() {
		b.Right("API "+classifyConnectionError(m.snapshot.LastError), styles.DangerText)
	}
	b.Right(string(m.snapshot.Source), styles.FaintText)
	if !m.snapshot.LastUpdated.IsZero() {
		b.Right(m.snapshot.LastUpdated.Format("15:04:05"), styles.MutedText)
	}
	return styles.Header.Width(m.width).Render(b.Render(inner))
}

// renderStatusLine shows the latest command outcome, falling back to layout
// diagnostics.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	if m.flash != "" && time.Since(m.flashAt) < flashTTL {
		if m.flashErr {
			return styles.DangerText.Render(m.flash)
		}
		return styles.SuccessText.Render(m.flash)
	}
	if diag := graphDiagnostic(m.session.Graph()); diag != "" {
		return styles.WarningText.Render(diag)
	}
	if err := m.snapshot.LastError; err != nil && m.snapshot.HasDeployment {
		return styles.MutedText.Render(fmt.Sprintf("last refresh failed: %v", err))
	}
	return ""
}

// classifyConnectionError condenses a transport error into a short label.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	case strings.Contains(msg, "not found"):
		return "NOT FOUND"
	default:
		return "ERROR"
	}
}

// truncateMiddle shortens s to max runes, keeping both ends.
func truncateMiddle(s string, max int) string {
	runes := []rune(s)
	if max <= 0 {
		return ""
	}
	if len(runes) <= max {
		return s
	}
	if max <= 5 {
		return string(runes[:max])
	}
	endLen := (max - 1) / 2
	startLen := max - 1 - endLen
	return string(runes[:startLen]) + "…" + string(runes[len(runes)-endLen:])
}
