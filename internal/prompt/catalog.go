// Package prompt renders 360° skybox image prompts from a catalog of themes,
// each with a template, a list of locations and a list of time/weather phrases.
package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template slots.
const (
	SlotPrefix      = "{prefix}"
	SlotLocation    = "{location}"
	SlotTimeWeather = "{time_weather}"
	SlotSuffix      = "{suffix}"
)

// Static errors.
var (
	ErrNoThemes        = errors.New("catalog has no themes")
	ErrThemeNameEmpty  = errors.New("theme name cannot be empty")
	ErrDuplicateTheme  = errors.New("duplicate theme")
	ErrMissingLocation = errors.New("template has no " + SlotLocation + " slot")
	ErrNoLocations     = errors.New("theme has no locations")
	ErrNoTimes         = errors.New("theme has no time phrases")
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Theme is one world of the catalog.
type Theme struct {
	Name      string   `yaml:"name"`
	Template  string   `yaml:"template"`
	Locations []string `yaml:"locations"`
	Times     []string `yaml:"times"`
}

// Catalog is the full prompt vocabulary. Themes keep their file order.
type Catalog struct {
	Prefix string  `yaml:"prefix"`
	Suffix string  `yaml:"suffix"`
	Themes []Theme `yaml:"themes"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path selects the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog. Unknown keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	validationErr := catalog.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return &catalog, nil
}

// Validate checks that every theme can produce at least one prompt.
func (c *Catalog) Validate() error {
	if len(c.Themes) == 0 {
		return ErrNoThemes
	}

	seen := make(map[string]struct{}, len(c.Themes))

	for index, theme := range c.Themes {
		if strings.TrimSpace(theme.Name) == "" {
			return fmt.Errorf("theme %d: %w", index, ErrThemeNameEmpty)
		}

		if _, duplicate := seen[theme.Name]; duplicate {
			return fmt.Errorf("%w: %s", ErrDuplicateTheme, theme.Name)
		}

		seen[theme.Name] = struct{}{}

		if !strings.Contains(theme.Template, SlotLocation) {
			return fmt.Errorf("%s: %w", theme.Name, ErrMissingLocation)
		}

		if len(theme.Locations) == 0 {
			return fmt.Errorf("%s: %w", theme.Name, ErrNoLocations)
		}

		if len(theme.Times) == 0 {
			return fmt.Errorf("%s: %w", theme.Name, ErrNoTimes)
		}
	}

	return nil
}

// Size is the number of prompts a render produces: one per location.
func (c *Catalog) Size() int {
	total := 0
	for _, theme := range c.Themes {
		total += len(theme.Locations)
	}

	return total
}
