package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// bar assembles a single-line status bar on a solid background. lipgloss
// resets attributes between styled runs, so every run, including the spaces
// between words, carries the bar colour explicitly.
type bar struct {
	bg    lipgloss.Color
	fill  lipgloss.Style
	left  []string
	right []string
}

const barGap = "  "

func newBar(bgColor string) *bar {
	bg := lipgloss.Color(bgColor)
	return &bar{bg: bg, fill: lipgloss.NewStyle().Background(bg)}
}

// segment paints text word by word so interior spaces keep the background.
func (b *bar) segment(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	style = style.Background(b.bg)
	words := strings.Split(text, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, b.fill.Render(" "))
}

// Left appends a segment to the left-aligned group.
func (b *bar) Left(text string, style lipgloss.Style) *bar {
	if s := b.segment(text, style); s != "" {
		b.left = append(b.left, s)
	}
	return b
}

// LeftRaw appends an already rendered segment, such as a status badge with
// its own background.
func (b *bar) LeftRaw(rendered string) *bar {
	if rendered != "" {
		b.left = append(b.left, rendered)
	}
	return b
}

// Right appends a segment to the right-aligned group.
func (b *bar) Right(text string, style lipgloss.Style) *bar {
	if s := b.segment(text, style); s != "" {
		b.right = append(b.right, s)
	}
	return b
}

// Render lays out both groups in width cells. The right group is dropped
// when it does not fit.
func (b *bar) Render(width int) string {
	sep := b.fill.Render(barGap)
	left := strings.Join(b.left, sep)
	if len(b.right) == 0 {
		return left
	}
	right := strings.Join(b.right, sep)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + b.fill.Render(strings.Repeat(" ", gap)) + right
}
