/*
Package notify formats classified announcements into chat messages and
delivers them over a single channel.
*/
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Sender delivers one message. Any non-success outcome is an error.
type Sender interface {
	Send(ctx context.Context, b Batch) error
}

// ConsoleSender prints messages instead of delivering them.
type ConsoleSender struct {
	w io.Writer
}

func NewConsoleSender(w io.Writer) *ConsoleSender {
	return &ConsoleSender{w: w}
}

func (s *ConsoleSender) Send(_ context.Context, b Batch) error {
	out := "\n-------------------------------------------\n" +
		fmt.Sprintf("%s (%d IDs)\n", b.Source, len(b.IDs)) +
		"-------------------------------------------\n" +
		b.Text + "\n"
	_, err := io.WriteString(s.w, out)
	return err
}

// ReportNothing prints the end-of-run line when no source had anything new.
func ReportNothing(w io.Writer, sources []string) {
	fmt.Fprintln(w, "\n-------------------------------------------")
	fmt.Fprintf(w, "No new announcements from %s.\n", strings.Join(sources, ", "))
	fmt.Fprintln(w, "-------------------------------------------")
}
