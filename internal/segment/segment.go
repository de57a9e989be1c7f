// Package segment splits text into bounded-length chunks for synthesis.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChars is the segment length used when the caller passes a
// non-positive maximum.
const DefaultMaxChars = 240

// Unit is a single sentence or clause produced by SplitUnits.
type Unit struct {
	// Text is the unit content, trimmed.
	Text string
	// Spaced reports whether whitespace separated this unit from the
	// previous one in the source text.
	Spaced bool
}

// Normalize collapses every whitespace run to a single space and trims the
// result.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and packs its sentences into segments of at most
// maxChars characters. A sentence longer than maxChars is returned whole as
// its own segment. The result is never empty: text without any content
// yields a single empty segment.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	normalized := Normalize(text)
	units := SplitUnits(normalized)
	if len(units) == 0 {
		return []string{normalized}
	}

	var (
		segments []string
		buf      strings.Builder
		bufLen   int
	)
	for _, u := range units {
		sep := ""
		if u.Spaced {
			sep = " "
		}
		n := utf8.RuneCountInString(u.Text)

		if bufLen == 0 {
			buf.WriteString(u.Text)
			bufLen = n
			continue
		}
		if bufLen+len(sep)+n <= maxChars {
			buf.WriteString(sep)
			buf.WriteString(u.Text)
			bufLen += len(sep) + n
			continue
		}

		segments = append(segments, buf.String())
		buf.Reset()
		buf.WriteString(u.Text)
		bufLen = n
	}
	if bufLen > 0 {
		segments = append(segments, buf.String())
	}
	return segments
}

// SplitUnits breaks text into sentence and clause units. Latin terminators
// end a unit only when followed by whitespace or the end of the text, so
// "3.14" or "a.m." stay intact; CJK terminators and list separators always
// end a unit. Newlines are boundaries as well.
func SplitUnits(text string) []Unit {
	runes := []rune(text)

	var (
		units  []Unit
		start  int
		spaced bool
	)
	emit := func(end int) {
		t := strings.TrimSpace(string(runes[start:end]))
		if t != "" {
			units = append(units, Unit{Text: t, Spaced: spaced && len(units) > 0})
		}
		start = end
		spaced = false
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			emit(i)
			start = i + 1
			spaced = true
			continue
		}

		if !isLatinTerminator(r) && !isCJKBoundary(r) {
			continue
		}

		// Keep runs like "?!", "……" or `."` attached to the unit.
		end := i + 1
		cjk := isCJKBoundary(r)
		for end < len(runes) && (isLatinTerminator(runes[end]) || isCJKBoundary(runes[end]) || isClosing(runes[end])) {
			if isCJKBoundary(runes[end]) {
				cjk = true
			}
			end++
		}

		atEnd := end == len(runes)
		followedBySpace := !atEnd && unicode.IsSpace(runes[end])
		if !cjk && !atEnd && !followedBySpace {
			i = end - 1
			continue
		}

		emit(end)
		if followedBySpace {
			// Skip the whitespace run and remember it for the next unit.
			for start < len(runes) && unicode.IsSpace(runes[start]) && runes[start] != '\n' {
				start++
			}
			spaced = true
		}
		i = start - 1
	}
	emit(len(runes))

	return units
}

func isLatinTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':':
		return true
	}
	return false
}

func isCJKBoundary(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '：', '…', '，', '、':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』', '）', '》', '】':
		return true
	}
	return false
}
