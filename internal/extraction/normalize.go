package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

// Lines is OCR text reduced to trimmed, whitespace-collapsed lines in
// top-to-bottom reading order. Reading order matters downstream: it is
// what lets a labeled amount near the top beat a balance near the
// bottom.
type Lines []string

var (
	reLineBreak   = regexp.MustCompile(`\r\n?|\n`)
	reInlineSpace = regexp.MustCompile(`[ \t]+`)
)

// Normalize splits raw OCR output into canonical lines: non-printable
// noise becomes whitespace, runs of spaces and tabs collapse to a
// single space, empty lines are dropped, line order is preserved.
// Case and punctuation are left alone; the field rules handle those
// themselves. Any input, including empty, yields a (possibly empty)
// result without error.
func Normalize(raw string) Lines {
	var lines Lines
	for _, line := range reLineBreak.Split(raw, -1) {
		line = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || unicode.IsPrint(r) {
				return r
			}
			return ' '
		}, line)
		line = strings.TrimSpace(reInlineSpace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
