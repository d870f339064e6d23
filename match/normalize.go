// Package match groups commits that carry the same logical change: clean
// cherry-picks and rebases collide on a fingerprint of their normalized diff,
// and backports that altered context lines can still join through
// cross-reference tokens found in the commit message.
package match

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Normalize reduces a unified diff to the part of the change that survives a
// cherry-pick: per file, the added and removed lines with whitespace
// squashed. Everything positional is dropped: hunk headers, index lines,
// mode changes, context lines. Line endings are unified to LF. A change that
// only moves whitespace around normalizes to nothing.
//
// The output starts with one "file <path>" line per touched file, files in
// path order, each followed by its normalized "+" and "-" lines in their
// original order.
func Normalize(diff []byte) []byte {
	if len(diff) == 0 {
		return nil
	}

	diff = bytes.ReplaceAll(diff, []byte("\r\n"), []byte("\n"))

	type fileDiff struct {
		path    string
		lines   []string
		added   []string
		removed []string
	}

	var files []*fileDiff
	var current *fileDiff
	var oldPath string
	var oldLeft, newLeft int

	flush := func(path string) {
		current = &fileDiff{path: path}
		files = append(files, current)
	}

	for _, line := range strings.Split(string(diff), "\n") {
		if oldLeft > 0 || newLeft > 0 {
			// Inside a hunk the counts from the @@ header decide what
			// is content, so removed or added lines that happen to
			// start with -- or ++ are never taken for file headers.
			switch {
			case strings.HasPrefix(line, "+"):
				l := squashWhitespace(line[1:])
				current.lines = append(current.lines, "+"+l)
				current.added = append(current.added, l)
				newLeft--
			case strings.HasPrefix(line, "-"):
				l := squashWhitespace(line[1:])
				current.lines = append(current.lines, "-"+l)
				current.removed = append(current.removed, l)
				oldLeft--
			case strings.HasPrefix(line, `\`):
				// "\ No newline at end of file"
			default:
				oldLeft--
				newLeft--
			}

			continue
		}

		switch {
		case strings.HasPrefix(line, "--- "):
			oldPath = stripPathPrefix(strings.TrimPrefix(line, "--- "))
		case strings.HasPrefix(line, "+++ "):
			path := stripPathPrefix(strings.TrimPrefix(line, "+++ "))
			if path == "" {
				path = oldPath // deleted file
			}

			flush(path)
		case current == nil:
			// preamble: diff/index/mode lines before the first file
		case strings.HasPrefix(line, "@@ "):
			oldLeft, newLeft = hunkSpan(line)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	var out bytes.Buffer
	for _, f := range files {
		if whitespaceOnly(f.added, f.removed) {
			continue
		}

		out.WriteString("file ")
		out.WriteString(f.path)
		out.WriteByte('\n')
		for _, l := range f.lines {
			out.WriteString(l)
			out.WriteByte('\n')
		}
	}

	return out.Bytes()
}

// whitespaceOnly reports whether the removed lines reappear, in the same
// order, as the added lines after whitespace squashing: a reindent or
// line-ending change. A reordering of lines is a real change and stays.
func whitespaceOnly(added, removed []string) bool {
	if len(added) != len(removed) {
		return false
	}

	for i, l := range added {
		if removed[i] != l {
			return false
		}
	}

	return true
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// hunkSpan returns the old and new line counts declared by a hunk header.
// An omitted count means one line.
func hunkSpan(line string) (int, int) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return 0, 0
	}

	return spanCount(m[1]), spanCount(m[2])
}

func spanCount(s string) int {
	if s == "" {
		return 1
	}

	n, _ := strconv.Atoi(s)
	return n
}

// stripPathPrefix removes the a/ or b/ prefix git puts on diff paths, and
// maps /dev/null to the empty path.
func stripPathPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "/dev/null" {
		return ""
	}

	if len(p) > 2 && (p[0] == 'a' || p[0] == 'b') && p[1] == '/' {
		return p[2:]
	}

	return p
}

// squashWhitespace trims the line and collapses internal runs of spaces and
// tabs into a single space.
func squashWhitespace(l string) string {
	var b strings.Builder
	b.Grow(len(l))
	space := false
	for _, r := range strings.TrimSpace(l) {
		if r == ' ' || r == '\t' {
			space = true
			continue
		}

		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}

		space = false
		b.WriteRune(r)
	}

	return b.String()
}
