package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// writeTable prints a pipe table padded by display width, so Hangul columns
// line up in a terminal.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := runewidth.StringWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	line := func(cells []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for i, width := range widths {
			content := ""
			if i < len(cells) {
				content = cells[i]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, width))
			sb.WriteString(" |")
		}
		return sb.String() + "\n"
	}

	sep := make([]string, len(widths))
	for i, width := range widths {
		sep[i] = strings.Repeat("-", width)
	}

	var out strings.Builder
	out.WriteString(line(header))
	out.WriteString(line(sep))
	for _, row := range rows {
		out.WriteString(line(row))
	}
	_, err := io.WriteString(w, out.String())
	return err
}
