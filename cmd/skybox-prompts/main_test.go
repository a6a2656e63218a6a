package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	content := "[paths]\nbase_logs_dir = '" + filepath.Join(dir, "logs") + "'\n"

	configPath := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestRootCommand_WritesPrompts(t *testing.T) {
	t.Parallel()

	configPath, dir := writeConfig(t)
	outputPath := filepath.Join(dir, "hearo_skybox_prompts.txt")

	output, err := execute(t, "--config", configPath, "-o", outputPath, "--seed", "11")
	require.NoError(t, err)

	assert.Contains(t, output, "Fantasy (20 locations)")
	assert.Contains(t, output, "Done: 120 prompts rendered.")
	assert.Contains(t, output, outputPath)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	blocks := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n\n")
	assert.Len(t, blocks, 120)
	assert.True(t, strings.HasPrefix(blocks[0], "[Fantasy] 360 degree equirectangular panorama"))
	assert.True(t, strings.HasPrefix(blocks[119], "[Spy] "))
}

func TestRootCommand_SeedIsReproducible(t *testing.T) {
	t.Parallel()

	configPath, dir := writeConfig(t)
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.txt")

	_, err := execute(t, "--config", configPath, "-o", first, "--seed", "99")
	require.NoError(t, err)

	_, err = execute(t, "--config", configPath, "-o", second, "--seed", "99")
	require.NoError(t, err)

	firstData, err := os.ReadFile(first)
	require.NoError(t, err)

	secondData, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, string(firstData), string(secondData))
}

func TestRootCommand_CatalogOverride(t *testing.T) {
	t.Parallel()

	configPath, dir := writeConfig(t)
	catalogPath := filepath.Join(dir, "catalog.yaml")
	catalog := `prefix: "PRE"
suffix: "SUF"
themes:
  - name: "Zombie"
    template: "{prefix} {location}. {time_weather}. {suffix}"
    locations: ["an Underground bunker", "a Rooftop camp"]
    times: ["in heavy rain"]
`
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog), 0o600))

	outputPath := filepath.Join(dir, "out.txt")

	_, err := execute(t, "--config", configPath, "--catalog", catalogPath, "-o", outputPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t,
		"[Zombie] PRE an Underground bunker. in heavy rain. SUF\n\n[Zombie] PRE a Rooftop camp. in heavy rain. SUF\n",
		string(data))
}

func TestRootCommand_InvalidCatalog(t *testing.T) {
	t.Parallel()

	configPath, dir := writeConfig(t)
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("prefix: a\nsuffix: b\nthemes: []\n"), 0o600))

	_, err := execute(t, "--config", configPath, "--catalog", catalogPath, "-o", filepath.Join(dir, "out.txt"))
	require.Error(t, err)
}
