package utils

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// NumberOfContextLines is the context kept around each hunk.
const NumberOfContextLines = 3

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// UnifiedDiff renders a line diff between two versions of name. It returns an
// empty string when they are equal.
func UnifiedDiff(name, before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []diffLine
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			ops = append(ops, diffLine{op: d.Type, text: line})
		}
	}

	// oldAt[i] and newAt[i] count the lines of each side before ops[i].
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, o := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if o.op != diffmatchpatch.DiffInsert {
			oldAt[i+1]++
		}
		if o.op != diffmatchpatch.DiffDelete {
			newAt[i+1]++
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n+++ b/%s\n", name, name)
	for i := 0; i < len(ops); {
		for i < len(ops) && ops[i].op == diffmatchpatch.DiffEqual {
			i++
		}
		if i == len(ops) {
			break
		}
		start := max(0, i-NumberOfContextLines)
		end := i
		for end < len(ops) {
			if ops[end].op != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].op == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(ops) || run-end > 2*NumberOfContextLines {
				end = min(end+NumberOfContextLines, len(ops))
				break
			}
			end = run
		}

		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n",
			oldAt[start]+1, oldAt[end]-oldAt[start], newAt[start]+1, newAt[end]-newAt[start])
		for _, o := range ops[start:end] {
			switch o.op {
			case diffmatchpatch.DiffDelete:
				out.WriteString("-")
			case diffmatchpatch.DiffInsert:
				out.WriteString("+")
			default:
				out.WriteString(" ")
			}
			out.WriteString(o.text + "\n")
		}
		i = end
	}
	return out.String()
}

func splitLines(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(strings.TrimSuffix(p, "\n"), "\r")
	}
	return parts
}
