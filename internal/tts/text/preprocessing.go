// Package text prepares narration lines for speech synthesis and for
// operator-facing previews.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultPreviewRunes is the preview length used in batch progress output.
const DefaultPreviewRunes = 50

const whitespaceRegexPattern = `\s+`

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor cleans narration lines. CollapseWhitespace keeps the wording
// the model receives; Normalize flattens punctuation for console previews.
type Preprocessor struct {
	whitespacePattern *regexp.Regexp
	punctuation       *strings.Replacer
}

// NewPreprocessor creates a preprocessor with its patterns compiled once.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		punctuation: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize collapses whitespace (including line breaks) to single spaces
// and replaces typographic dashes, quotes and ellipses with plain ASCII.
// Korean and other non-Latin text passes through untouched.
func (p *Preprocessor) Normalize(line string) string {
	if line == "" {
		return line
	}

	line = p.punctuation.Replace(line)
	line = p.whitespacePattern.ReplaceAllString(line, " ")

	return strings.TrimSpace(line)
}

// CollapseWhitespace folds runs of whitespace (including line breaks) into
// single spaces and trims the ends. Punctuation is left as written so the
// model still hears the dashes, quotes and ellipses of the narration.
func (p *Preprocessor) CollapseWhitespace(line string) string {
	if line == "" {
		return line
	}

	return strings.TrimSpace(p.whitespacePattern.ReplaceAllString(line, " "))
}

// Preview shortens a line to at most maxRunes runes, never splitting a
// multi-byte character, and marks truncation with an ellipsis.
func Preview(line string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(line) <= maxRunes {
		return line
	}

	runes := []rune(line)

	return string(runes[:maxRunes]) + ellipsis
}
