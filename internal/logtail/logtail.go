package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// maxLineBytes bounds a single line; longer lines fail the read.
const maxLineBytes = 1 << 20

// Line is one line of input with its zero-based position.
type Line struct {
	Number int64
	Text   string
}

// Read returns the last keep lines of the file at path, or every line when
// keep <= 0. A missing file yields no lines and no error.
func Read(path string, keep int) ([]Line, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	lines, err := Tail(f, keep)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return lines, nil
}

// Tail scans r once and keeps the last keep lines, or every line when
// keep <= 0.
func Tail(r io.Reader, keep int) ([]Line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		window []Line
		n      int64
	)
	for sc.Scan() {
		window = append(window, Line{Number: n, Text: sc.Text()})
		n++
		// Compact once the window has doubled so the drop stays amortised.
		if keep > 0 && len(window) >= 2*keep {
			window = append(window[:0], window[len(window)-keep:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if keep > 0 && len(window) > keep {
		window = window[len(window)-keep:]
	}
	return window, nil
}

// Texts drops the line numbers.
func Texts(lines []Line) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
