package journal_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/hearo-tools/internal/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fantasy/lunge_perfect", journal.Key("fantasy", "lunge", "perfect"))
	assert.Equal(t, "sf/bicep_curl_normal", journal.Key("sf", "bicep_curl", "normal"))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")

	progress, err := journal.Load(path)
	require.NoError(t, err)

	assert.Empty(t, progress.Completed())
	assert.Empty(t, progress.Failed())
	assert.Empty(t, progress.Skipped())
	assert.Equal(t, path, progress.Path())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "loading must not create the file")
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := journal.Load("")
	require.ErrorIs(t, err, journal.ErrPathEmpty)

	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = journal.Load(path)
	require.Error(t, err)
}

func TestJournal_SaveAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "progress.json")
	progress := journal.New(path)

	require.NoError(t, progress.MarkSucceeded("fantasy/squat_perfect"))
	require.NoError(t, progress.MarkFailed("fantasy/squat_good"))
	require.NoError(t, progress.MarkSkipped("fantasy/squat_normal"))
	require.NoError(t, progress.Save())

	reloaded, err := journal.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"fantasy/squat_perfect"}, reloaded.Completed())
	assert.Equal(t, []string{"fantasy/squat_good"}, reloaded.Failed())
	assert.Equal(t, []string{"fantasy/squat_normal"}, reloaded.Skipped())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "completed")
	assert.Contains(t, raw, "failed")
	assert.Contains(t, raw, "skipped")
}

func TestJournal_SaveEmptyWritesEmptyLists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, journal.New(path).Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"completed": [], "failed": [], "skipped": []}`, string(data))
}

func TestJournal_SuccessRemovesFromFailed(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))
	key := journal.Key("spy", "lunge", "good")

	require.NoError(t, progress.MarkFailed(key))
	assert.True(t, progress.IsFailed(key))
	assert.False(t, progress.IsCompleted(key))

	require.NoError(t, progress.MarkSucceeded(key))
	assert.True(t, progress.IsCompleted(key))
	assert.False(t, progress.IsFailed(key))
}

func TestJournal_CompletedAndFailedStayDisjoint(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))
	keys := []string{"idol/squat_perfect", "idol/squat_good", "idol/squat_normal"}

	for round := range 3 {
		for index, key := range keys {
			if (index+round)%2 == 0 {
				require.NoError(t, progress.MarkSucceeded(key))
			} else {
				require.NoError(t, progress.MarkFailed(key))
			}
		}

		for _, key := range keys {
			assert.False(t, progress.IsCompleted(key) && progress.IsFailed(key), key)
		}
	}
}

func TestJournal_MarkIsIdempotent(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))

	require.NoError(t, progress.MarkSucceeded("sf/squat_good"))
	require.NoError(t, progress.MarkSucceeded("sf/squat_good"))
	require.NoError(t, progress.MarkFailed("sf/lunge_good"))
	require.NoError(t, progress.MarkFailed("sf/lunge_good"))

	assert.Len(t, progress.Completed(), 1)
	assert.Len(t, progress.Failed(), 1)
}

func TestJournal_SkippedNeverShadowsCompleted(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))

	require.NoError(t, progress.MarkSucceeded("zombie/squat_good"))
	require.NoError(t, progress.MarkSkipped("zombie/squat_good"))
	assert.False(t, progress.IsSkipped("zombie/squat_good"))

	require.NoError(t, progress.MarkSkipped("zombie/lunge_good"))
	require.NoError(t, progress.MarkSucceeded("zombie/lunge_good"))
	assert.False(t, progress.IsSkipped("zombie/lunge_good"))
}

func TestJournal_EmptyKeyRejected(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))

	require.ErrorIs(t, progress.MarkSucceeded(""), journal.ErrKeyEmpty)
	require.ErrorIs(t, progress.MarkFailed(""), journal.ErrKeyEmpty)
	require.ErrorIs(t, progress.MarkSkipped(""), journal.ErrKeyEmpty)
}

func TestLoad_NormalizesOverlappingLists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	content := `{
  "completed": ["fantasy/squat_good", "fantasy/squat_good"],
  "failed": ["fantasy/squat_good", "fantasy/lunge_good"]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	progress, err := journal.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"fantasy/squat_good"}, progress.Completed())
	assert.Equal(t, []string{"fantasy/lunge_good"}, progress.Failed())
	assert.Empty(t, progress.Skipped())
	assert.NotNil(t, progress.Skipped())
}

func TestJournal_Reset(t *testing.T) {
	t.Parallel()

	progress := journal.New(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, progress.MarkSucceeded("spy/squat_good"))
	require.NoError(t, progress.MarkFailed("spy/lunge_good"))

	progress.Reset()

	assert.Empty(t, progress.Completed())
	assert.Empty(t, progress.Failed())
	assert.Empty(t, progress.Skipped())
}

func TestJournal_KeepsNonASCIIUnescaped(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	progress := journal.New(path)
	require.NoError(t, progress.MarkSucceeded("판타지/squat_good"))
	require.NoError(t, progress.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "판타지/squat_good")
}
