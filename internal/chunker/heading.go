package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxHeadingLevel caps how deep the heading hierarchy can nest.
const MaxHeadingLevel = 6

// HeadingLevel returns the Markdown heading level of a line: the number of
// leading '#' characters, capped at MaxHeadingLevel. Returns 0 for lines that
// carry no marker.
func HeadingLevel(line string) int {
	level := 0
	rest := strings.TrimSpace(line)
	for strings.HasPrefix(rest, "#") {
		level++
		rest = strings.TrimLeft(rest[1:], " \t")
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}

// HeadingText strips the Markdown markers from a heading line, leaving the
// display title.
func HeadingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// HeadingDetector decides whether a line of extracted text is probably a
// section heading. Implementations are heuristics; false positives and
// negatives are expected and must be tolerated downstream, where a
// misclassified line simply lands in the wrong chunk category.
type HeadingDetector interface {
	IsHeading(line string) bool
}

var numberedSectionRe = regexp.MustCompile(`^\d+\.?\s+[A-Z]`)

// HeuristicDetector flags short lines without sentence punctuation that are
// either fully upper-case or start like a numbered section ("1. Introduction").
// Tuned for text extracted from PDFs, where Markdown markers are absent.
type HeuristicDetector struct {
	// MaxLen is the length above which a line is never a heading.
	// Zero means the default of 50 characters.
	MaxLen int
}

func (d HeuristicDetector) IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	maxLen := d.MaxLen
	if maxLen <= 0 {
		maxLen = 50
	}
	if len(line) >= maxLen {
		return false
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") || strings.HasSuffix(line, ";") {
		return false
	}
	return isUpper(line) || numberedSectionRe.MatchString(line)
}

// isUpper reports whether the line contains at least one letter and no
// lower-case letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
