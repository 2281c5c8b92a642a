package ansilog

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

const (
	// Space replaces every whitespace rune other than a newline.
	Space = '\u00a0'
	// NewlineMarker replaces a newline.
	NewlineMarker = `\n`
)

var sgrPattern = regexp.MustCompile(`\x1b\[([0-9;]*)m`)

// Cell is a run of text sharing one style.
type Cell struct {
	// Text is the display form with whitespace substituted.
	Text string
	// Raw is the original text of the run with escape sequences removed.
	Raw        string
	Foreground Color
	Background Color
	Bold       bool
	Underline  bool
}

type style struct {
	fg, bg    Color
	bold      bool
	underline bool
}

func defaultStyle() style {
	return style{fg: DefaultForeground, bg: DefaultBackground}
}

// Decode splits raw into cells. Text before each SGR sequence is emitted with
// the style in effect, then the sequence updates the style. Other escape
// sequences are dropped. Decode keeps no state between calls.
func Decode(raw string) []Cell {
	matches := sgrPattern.FindAllStringSubmatchIndex(raw, -1)
	cells := make([]Cell, 0, len(matches)+1)
	cur := defaultStyle()
	pos := 0
	for _, m := range matches {
		cells = appendCell(cells, raw[pos:m[0]], cur)
		cur = cur.apply(raw[m[2]:m[3]])
		pos = m[1]
	}
	return appendCell(cells, raw[pos:], cur)
}

// Plain concatenates the raw text of cells.
func Plain(cells []Cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.Raw)
	}
	return b.String()
}

func appendCell(cells []Cell, segment string, st style) []Cell {
	if strings.IndexByte(segment, '\x1b') >= 0 {
		segment = ansi.Strip(segment)
	}
	if segment == "" {
		return cells
	}
	return append(cells, Cell{
		Text:       substitute(segment),
		Raw:        segment,
		Foreground: st.fg,
		Background: st.bg,
		Bold:       st.bold,
		Underline:  st.underline,
	})
}

func substitute(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(NewlineMarker)
		case unicode.IsSpace(r):
			b.WriteRune(Space)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// apply folds one parameter list into the style. A bold parameter earlier in
// the same sequence turns 30-37 and 40-47 into their bright variants.
func (s style) apply(params string) style {
	if params == "" {
		return defaultStyle()
	}

	fields := strings.Split(params, ";")
	bright := false
	for i := 0; i < len(fields); i++ {
		if fields[i] == "" {
			s = defaultStyle()
			bright = false
			continue
		}
		code, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		switch {
		case code == 0:
			s = defaultStyle()
			bright = false
		case code == 1:
			s.bold = true
			bright = true
		case code == 4:
			s.underline = true
		case code == 7:
			s.fg, s.bg = s.bg, s.fg
		case code >= 30 && code <= 37:
			s.fg = Color(code - 30)
			if bright {
				s.fg = s.fg.Bright()
			}
		case code == 39:
			s.fg = DefaultForeground
		case code >= 40 && code <= 47:
			s.bg = Color(code - 40)
			if bright {
				s.bg = s.bg.Bright()
			}
		case code == 49:
			s.bg = DefaultBackground
		case code >= 90 && code <= 97:
			s.fg = Color(code - 90).Bright()
		case code >= 100 && code <= 107:
			s.bg = Color(code - 100).Bright()
		case code == 38 || code == 48:
			i += extendedColorArgs(fields[i+1:])
		}
	}
	return s
}

// extendedColorArgs returns how many parameters a 38/48 colour selector
// consumes so they are not read as codes of their own.
func extendedColorArgs(rest []string) int {
	if len(rest) == 0 {
		return 0
	}
	switch rest[0] {
	case "5":
		return min(2, len(rest))
	case "2":
		return min(4, len(rest))
	default:
		return 0
	}
}
