package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op says whether a line was kept, removed or added.
type Op int

const (
	Equal Op = iota
	Delete
	Insert
)

// Line is one line of a line-level diff, including its trailing newline if
// it had one.
type Line struct {
	Op   Op
	Text string
}

// Lines compares from and to line by line.
func Lines(from, to string) []Line {
	dmp := diffmatchpatch.New()
	a, b, table := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), table)

	var out []Line
	for _, d := range diffs {
		op := Equal
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = Delete
		case diffmatchpatch.DiffInsert:
			op = Insert
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, Line{Op: op, Text: text})
		}
	}
	return out
}

func splitLines(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Stats counts inserted and deleted lines.
func Stats(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Op {
		case Insert:
			added++
		case Delete:
			removed++
		}
	}
	return added, removed
}

// Render prints lines with a "+", "-" or " " marker under a
// "--- fromName" / "+++ toName" header. It returns "" when nothing changed.
func Render(fromName, toName string, lines []Line) string {
	if added, removed := Stats(lines); added == 0 && removed == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("--- " + fromName + "\n")
	sb.WriteString("+++ " + toName + "\n")
	for _, l := range lines {
		switch l.Op {
		case Insert:
			sb.WriteByte('+')
		case Delete:
			sb.WriteByte('-')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(l.Text)
		if !strings.HasSuffix(l.Text, "\n") {
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
	return sb.String()
}

// Patch returns the diff-match-patch text form of the change from from to to.
func Patch(from, to string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(from, to, false)
	return dmp.PatchToText(dmp.PatchMake(from, diffs))
}
