// Package journal persists which speech work items have completed, failed or
// been skipped, so that an interrupted batch can resume where it stopped.
//
// The journal is read once, mutated in memory and rewritten in full after
// every item. Exactly one process is expected to own the file at a time.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

const (
	filePermissions = 0o644
	dirPermissions  = 0o750
	tempFilePattern = ".journal-*.tmp"
)

// Static errors.
var (
	ErrPathEmpty = errors.New("journal path cannot be empty")
	ErrKeyEmpty  = errors.New("journal key cannot be empty")
)

// Key builds the journal key of a work item: "theme/exercise_grade".
func Key(theme, exercise, grade string) string {
	return theme + "/" + exercise + "_" + grade
}

// document is the on-disk shape of the journal.
type document struct {
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
	Skipped   []string `json:"skipped"`
}

// Journal is the in-memory view of the progress file. Lists keep insertion
// order; completed and failed are always disjoint.
type Journal struct {
	path string
	doc  document
}

// Load reads the journal at path. A missing file yields an empty journal.
func Load(path string) (*Journal, error) {
	if path == "" {
		return nil, ErrPathEmpty
	}

	journal := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return journal, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", path, err)
	}

	err = json.Unmarshal(data, &journal.doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", path, err)
	}

	journal.normalize()

	return journal, nil
}

// New returns an empty journal bound to path.
func New(path string) *Journal {
	return &Journal{
		path: path,
		doc: document{
			Completed: []string{},
			Failed:    []string{},
			Skipped:   []string{},
		},
	}
}

// Path returns the file the journal is persisted to.
func (j *Journal) Path() string {
	return j.path
}

// Reset empties all three lists.
func (j *Journal) Reset() {
	j.doc = document{
		Completed: []string{},
		Failed:    []string{},
		Skipped:   []string{},
	}
}

// IsCompleted reports whether key finished successfully before.
func (j *Journal) IsCompleted(key string) bool {
	return slices.Contains(j.doc.Completed, key)
}

// IsFailed reports whether key is waiting for a retry.
func (j *Journal) IsFailed(key string) bool {
	return slices.Contains(j.doc.Failed, key)
}

// IsSkipped reports whether key was skipped for lack of source text.
func (j *Journal) IsSkipped(key string) bool {
	return slices.Contains(j.doc.Skipped, key)
}

// MarkSucceeded moves key into completed.
func (j *Journal) MarkSucceeded(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	j.doc.Completed = appendUnique(j.doc.Completed, key)
	j.doc.Failed = remove(j.doc.Failed, key)
	j.doc.Skipped = remove(j.doc.Skipped, key)

	return nil
}

// MarkFailed moves key into failed.
func (j *Journal) MarkFailed(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	j.doc.Failed = appendUnique(j.doc.Failed, key)
	j.doc.Completed = remove(j.doc.Completed, key)

	return nil
}

// MarkSkipped records that key had no source text. Completed keys are left alone.
func (j *Journal) MarkSkipped(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	if j.IsCompleted(key) {
		return nil
	}

	j.doc.Skipped = appendUnique(j.doc.Skipped, key)

	return nil
}

// Completed returns a copy of the completed keys.
func (j *Journal) Completed() []string {
	return slices.Clone(j.doc.Completed)
}

// Failed returns a copy of the failed keys.
func (j *Journal) Failed() []string {
	return slices.Clone(j.doc.Failed)
}

// Skipped returns a copy of the skipped keys.
func (j *Journal) Skipped() []string {
	return slices.Clone(j.doc.Skipped)
}

// Save rewrites the whole journal file. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (j *Journal) Save() error {
	if j.path == "" {
		return ErrPathEmpty
	}

	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(j.doc)
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	dir := filepath.Dir(j.path)

	err = os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	return writeFileReplace(dir, j.path, buf.Bytes())
}

func writeFileReplace(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp journal: %w", err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write temp journal: %w", errors.Join(writeErr, closeErr))
	}

	err = os.Chmod(tmpName, filePermissions)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to set journal permissions: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace journal %s: %w", path, err)
	}

	return nil
}

// normalize restores the list invariants after reading a hand-edited or
// older file: no nil lists, no duplicates, failed and skipped disjoint from
// completed.
func (j *Journal) normalize() {
	j.doc.Completed = dedupe(j.doc.Completed)
	j.doc.Failed = dedupe(j.doc.Failed)
	j.doc.Skipped = dedupe(j.doc.Skipped)

	for _, key := range j.doc.Completed {
		j.doc.Failed = remove(j.doc.Failed, key)
		j.doc.Skipped = remove(j.doc.Skipped, key)
	}
}

func appendUnique(list []string, key string) []string {
	if slices.Contains(list, key) {
		return list
	}

	return append(list, key)
}

func remove(list []string, key string) []string {
	return slices.DeleteFunc(list, func(existing string) bool {
		return existing == key
	})
}

func dedupe(list []string) []string {
	result := make([]string, 0, len(list))

	for _, key := range list {
		if key == "" {
			continue
		}

		result = appendUnique(result, key)
	}

	return result
}
