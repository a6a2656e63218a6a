// Package stories loads the pre-written narration corpus used by the speech
// batch. The corpus is a nested JSON object: theme -> exercise -> grade -> line.
package stories

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
)

// Static errors.
var (
	ErrCorpusNotFound  = errors.New("story corpus not found")
	ErrThemeMissing    = errors.New("theme missing from corpus")
	ErrExerciseMissing = errors.New("exercise story set missing")
	ErrTextMissing     = errors.New("text missing for grade")
)

const errFmtLookup = "%w: %s"

// Corpus maps theme -> exercise -> grade -> narration text. Nested levels
// are kept raw and decoded on lookup, so metadata keys beside the themes or
// exercises never break the rest of the corpus.
type Corpus struct {
	themes map[string]json.RawMessage
}

// Load reads and parses the corpus file at path.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read story corpus %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes the top level of a corpus from raw JSON. It must be an object.
func Parse(data []byte) (*Corpus, error) {
	var themes map[string]json.RawMessage

	err := json.Unmarshal(data, &themes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse story corpus: %w", err)
	}

	if themes == nil {
		themes = map[string]json.RawMessage{}
	}

	return &Corpus{themes: themes}, nil
}

// Lookup returns the line for one work item. A node of the wrong shape is
// reported the same way as an absent one, and blank lines count as missing.
func (c *Corpus) Lookup(theme, exercise, grade string) (string, error) {
	rawTheme, ok := c.themes[theme]
	if !ok {
		return "", fmt.Errorf(errFmtLookup, ErrThemeMissing, theme)
	}

	exercises, ok := decodeObject(rawTheme)
	if !ok {
		return "", fmt.Errorf(errFmtLookup, ErrExerciseMissing, theme+"/"+exercise)
	}

	rawExercise, ok := exercises[exercise]
	if !ok {
		return "", fmt.Errorf(errFmtLookup, ErrExerciseMissing, theme+"/"+exercise)
	}

	grades, ok := decodeObject(rawExercise)
	if !ok {
		return "", fmt.Errorf(errFmtLookup, ErrExerciseMissing, theme+"/"+exercise)
	}

	var line string

	unmarshalErr := json.Unmarshal(grades[grade], &line)
	if unmarshalErr != nil || strings.TrimSpace(line) == "" {
		return "", fmt.Errorf(errFmtLookup, ErrTextMissing, theme+"/"+exercise+"_"+grade)
	}

	return line, nil
}

// decodeObject decodes one JSON object level. Null and non-object values
// report false.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var level map[string]json.RawMessage

	err := json.Unmarshal(raw, &level)
	if err != nil || level == nil {
		return nil, false
	}

	return level, true
}

// Themes lists the themes present in the corpus, sorted.
func (c *Corpus) Themes() []string {
	themes := make([]string, 0, len(c.themes))
	for theme := range c.themes {
		themes = append(themes, theme)
	}

	slices.Sort(themes)

	return themes
}
