// Package debug has helpers producing human readable dumps of internal
// structures.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TreeWriter accumulates indented line oriented dump of nested structure.
type TreeWriter struct {
	b      strings.Builder
	indent string
	limit  int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{indent: "  "}
}

// WithTextLimit truncates values printed by TextBlock to n runes, 0 disables
// truncation.
func (tw *TreeWriter) WithTextLimit(n int) *TreeWriter {
	tw.limit = max(n, 0)
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.b.String()
}

func (tw *TreeWriter) pad(depth int) {
	for range depth {
		tw.b.WriteString(tw.indent)
	}
}

// Line writes formatted line at depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(&tw.b, format, args...)
	tw.b.WriteByte('\n')
}

// TextBlock writes "label: value" with value quoted so control characters
// and surrounding spaces stay visible. Empty value is written as is.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.b.WriteString(label)
	tw.b.WriteString(": ")
	if len(value) != 0 {
		tw.b.WriteString(tw.quote(value))
	}
	tw.b.WriteByte('\n')
}

func (tw *TreeWriter) quote(value string) string {
	if tw.limit == 0 || utf8.RuneCountInString(value) <= tw.limit {
		return strconv.Quote(value)
	}
	n := 0
	for i := range value {
		if n == tw.limit {
			return strconv.Quote(value[:i]) + "..."
		}
		n++
	}
	return strconv.Quote(value)
}
