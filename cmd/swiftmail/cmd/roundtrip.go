package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/swiftmailer/swiftmailer-sub001/message"
)

// ErrNotRoundTripped is returned by roundtrip when a message does not come
// back out as it went in.
var ErrNotRoundTripped = errors.New("message changed in the round trip")

// contextLines is how many unchanged lines are shown around a change.
const contextLines = 3

func newRoundtripCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip message...",
		Short: "Parses and writes back each message, showing any difference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var changed int
			for _, path := range args {
				in, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				m, err := message.Parse(bytes.NewReader(in), message.WithMaxDepth(-1))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				var out bytes.Buffer
				if _, err := m.WriteTo(&out); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				if bytes.Equal(in, out.Bytes()) {
					fmt.Fprintf(c.OutOrStdout(), "ok %s\n", path)
					continue
				}

				changed++
				fmt.Fprintf(c.OutOrStdout(), "--- %s\n+++ %s (round trip)\n", path, path)
				fmt.Fprint(c.OutOrStdout(), LineDiff(string(in), out.String()))
			}

			if changed > 0 {
				return fmt.Errorf("%d of %d: %w", changed, len(args), ErrNotRoundTripped)
			}
			return nil
		},
	}
}

// LineDiff returns a line by line diff of a and b, marking removed lines
// with "-" and added ones with "+". Long runs of unchanged lines are cut down
// to the lines next to a change.
func LineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for i, d := range diffs {
		ls := strings.SplitAfter(d.Text, "\n")
		if ls[len(ls)-1] == "" {
			ls = ls[:len(ls)-1]
		}

		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
			ls = trimContext(ls, i > 0, i < len(diffs)-1)
		}

		for _, l := range ls {
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimRight(l, "\r\n"))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// trimContext keeps the lines of ls next to the changes before and after.
func trimContext(ls []string, before, after bool) []string {
	keep := 0
	if before {
		keep += contextLines
	}
	if after {
		keep += contextLines
	}
	if len(ls) <= keep+1 {
		return ls
	}

	var out []string
	if before {
		out = append(out, ls[:contextLines]...)
	}
	out = append(out, "...\n")
	if after {
		out = append(out, ls[len(ls)-contextLines:]...)
	}
	return out
}
