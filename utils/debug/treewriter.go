// Package debug has helpers producing human readable dumps for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indent = "  "

// TreeWriter accumulates indented lines.
type TreeWriter struct {
	sb *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{sb: &strings.Builder{}}
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

// Line writes formatted line at depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// TextBlock writes labeled value quoting it so control characters and
// multi-line text stay on a single line.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	if len(value) > 0 {
		value = strconv.Quote(value)
	}
	tw.Line(depth, "%s: %s", label, value)
}
