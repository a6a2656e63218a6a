package prompt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

const filePermissions = 0o644

var (
	// ErrPickerNil indicates that no random source was supplied.
	ErrPickerNil = errors.New("picker cannot be nil")
	// ErrOutputPathEmpty indicates that no output file was given.
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
)

// Picker chooses an index in [0, n). *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

// NewPicker returns a PCG-backed picker. The same seed always yields the same
// sequence of choices.
func NewPicker(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// NewRandomPicker returns a picker seeded from the runtime's random source.
func NewRandomPicker() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Prompt is one rendered image prompt.
type Prompt struct {
	Theme    string
	Location string
	Time     string
	Text     string
}

// String formats the prompt as a tagged line: "[Theme] text".
func (p Prompt) String() string {
	return "[" + p.Theme + "] " + p.Text
}

// Render expands the catalog in order: for every theme, one prompt per
// location with a time phrase chosen by picker.
func Render(catalog *Catalog, picker Picker) ([]Prompt, error) {
	if picker == nil {
		return nil, ErrPickerNil
	}

	if catalog == nil {
		return nil, ErrNoThemes
	}

	err := catalog.Validate()
	if err != nil {
		return nil, err
	}

	prompts := make([]Prompt, 0, catalog.Size())

	for _, theme := range catalog.Themes {
		for _, location := range theme.Locations {
			timeWeather := theme.Times[picker.IntN(len(theme.Times))]

			replacer := strings.NewReplacer(
				SlotPrefix, catalog.Prefix,
				SlotLocation, location,
				SlotTimeWeather, timeWeather,
				SlotSuffix, catalog.Suffix,
			)

			prompts = append(prompts, Prompt{
				Theme:    theme.Name,
				Location: location,
				Time:     timeWeather,
				Text:     replacer.Replace(theme.Template),
			})
		}
	}

	return prompts, nil
}

// Format lays the prompts out as blank-line separated blocks.
func Format(prompts []Prompt) string {
	blocks := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		blocks = append(blocks, prompt.String()+"\n")
	}

	return strings.Join(blocks, "\n")
}

// Write overwrites path with the formatted prompts and returns its absolute path.
func Write(path string, prompts []Prompt) (string, error) {
	if path == "" {
		return "", ErrOutputPathEmpty
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	err = os.WriteFile(absolute, []byte(Format(prompts)), filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to write prompts to %s: %w", absolute, err)
	}

	return absolute, nil
}
