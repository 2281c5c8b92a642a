package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/pipeview/internal/ansilog"
)

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [file]",
		Short: "Print the styled cells of an ANSI log, one input line at a time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return decodeLines(in, cmd.OutOrStdout())
		},
	}
}

func decodeLines(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		if _, err := fmt.Fprintf(w, "%d:\n", n); err != nil {
			return err
		}
		for _, c := range ansilog.Decode(scanner.Text()) {
			if _, err := fmt.Fprintf(w, "  [%s] %q\n", describeCell(c), c.Raw); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func describeCell(c ansilog.Cell) string {
	parts := []string{c.Foreground.String(), "on", c.Background.String()}
	if c.Bold {
		parts = append(parts, "bold")
	}
	if c.Underline {
		parts = append(parts, "underline")
	}
	return strings.Join(parts, " ")
}
