// Package worker drives the speech batch: it walks the worldview × exercise ×
// grade work set, synthesizes every eligible item, writes the audio file and
// keeps the progress journal current after each item.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/book-expert/hearo-tools/internal/core"
	"github.com/book-expert/hearo-tools/internal/journal"
	"github.com/book-expert/hearo-tools/internal/stories"
	"github.com/book-expert/hearo-tools/internal/tts"
	"github.com/book-expert/hearo-tools/internal/tts/audio"
	"github.com/book-expert/hearo-tools/internal/tts/text"
	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"
)

// Work set vocabularies, in processing order.
var (
	Worldviews   = []string{"fantasy", "sports", "idol", "sf", "zombie", "spy"}
	Exercises    = []string{"squat", "lunge", "bicep_curl", "arm_raise", "high_knees", "plank_hold"}
	NewExercises = []string{"lunge", "bicep_curl", "arm_raise"}
	Grades       = []string{"perfect", "good", "normal"}
)

var (
	// ErrUnknownWorldview indicates a worldview filter outside Worldviews.
	ErrUnknownWorldview = errors.New("unknown worldview")
	// ErrUnknownExercise indicates an exercise filter outside Exercises.
	ErrUnknownExercise = errors.New("unknown exercise")
	// ErrSynthesizerNil indicates that no synthesizer was supplied outside dry-run mode.
	ErrSynthesizerNil = errors.New("synthesizer cannot be nil")
	// ErrJournalNil indicates that no progress journal was supplied.
	ErrJournalNil = errors.New("journal cannot be nil")
	// ErrCorpusNil indicates that no story corpus was supplied.
	ErrCorpusNil = errors.New("story corpus cannot be nil")
	// ErrOutputDirEmpty indicates that the audio output root is empty.
	ErrOutputDirEmpty = errors.New("output directory cannot be empty")
	// ErrLoggerNil indicates that no logger was supplied.
	ErrLoggerNil = errors.New("logger cannot be nil")
)

const (
	rule           = "============================================================"
	itemIndent     = "      "
	retryHint      = "[TIP] retry the failures with: tts-batch --retry-failed"
	errFmtJournal  = "failed to save journal after %s: %w"
	logFmtItemFail = "Synthesis failed for %s: %v"
)

// SelectWorldviews returns the worldviews to process. An empty filter means all.
func SelectWorldviews(worldview string) ([]string, error) {
	if worldview == "" {
		return slices.Clone(Worldviews), nil
	}

	if !slices.Contains(Worldviews, worldview) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorldview, worldview)
	}

	return []string{worldview}, nil
}

// SelectExercises returns the exercises to process. A single exercise wins over
// newOnly; neither means all exercises.
func SelectExercises(exercise string, newOnly bool) ([]string, error) {
	switch {
	case exercise != "":
		if !slices.Contains(Exercises, exercise) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, exercise)
		}

		return []string{exercise}, nil
	case newOnly:
		return slices.Clone(NewExercises), nil
	default:
		return slices.Clone(Exercises), nil
	}
}

// Dependencies are the collaborators of a Batch. Store and Publisher are
// optional; Synthesizer may be nil only in dry-run mode.
type Dependencies struct {
	Synthesizer core.Synthesizer
	Journal     *journal.Journal
	Corpus      *stories.Corpus
	Store       core.ObjectStore
	Publisher   core.ItemPublisher
	Log         *logger.Logger
	Out         io.Writer
	Sleep       tts.SleepFunc
}

// Options select the work set and the run mode.
type Options struct {
	Worldviews  []string
	Exercises   []string
	OutputDir   string
	Format      audio.PCMFormat
	Pacing      time.Duration
	DryRun      bool
	RetryFailed bool
}

// Result counts the outcome of one run.
type Result struct {
	Succeeded      int
	Failed         int
	Skipped        int
	TotalCompleted int
}

// Batch runs the speech work set once.
type Batch struct {
	deps         Dependencies
	opts         Options
	preprocessor *text.Preprocessor
	warned       map[string]struct{}
}

// NewBatch validates its inputs and returns a ready batch.
func NewBatch(deps Dependencies, opts Options) (*Batch, error) {
	if deps.Journal == nil {
		return nil, ErrJournalNil
	}

	if deps.Corpus == nil {
		return nil, ErrCorpusNil
	}

	if deps.Log == nil {
		return nil, ErrLoggerNil
	}

	if deps.Synthesizer == nil && !opts.DryRun {
		return nil, ErrSynthesizerNil
	}

	if opts.OutputDir == "" {
		return nil, ErrOutputDirEmpty
	}

	formatErr := opts.Format.Validate()
	if formatErr != nil {
		return nil, fmt.Errorf("invalid audio format: %w", formatErr)
	}

	if deps.Out == nil {
		deps.Out = io.Discard
	}

	if deps.Sleep == nil {
		deps.Sleep = tts.Sleep
	}

	if len(opts.Worldviews) == 0 {
		opts.Worldviews = slices.Clone(Worldviews)
	}

	if len(opts.Exercises) == 0 {
		opts.Exercises = slices.Clone(Exercises)
	}

	return &Batch{
		deps:         deps,
		opts:         opts,
		preprocessor: text.NewPreprocessor(),
		warned:       make(map[string]struct{}),
	}, nil
}

// OutputPath is where the audio of one item is written: root/theme/exercise_grade.wav.
func OutputPath(root, theme, exercise, grade string) string {
	return filepath.Join(root, theme, exercise+"_"+grade+audio.FORMAT_WAV.Extension())
}

// Run processes the work set in order. It stops early when ctx ends or when
// the journal cannot be saved; the returned Result covers the items handled
// so far.
func (b *Batch) Run(ctx context.Context) (Result, error) {
	var result Result

	b.printHeader()

	attempted := 0

	for _, theme := range b.opts.Worldviews {
		for _, exercise := range b.opts.Exercises {
			for _, grade := range Grades {
				key := journal.Key(theme, exercise, grade)

				if !b.eligible(key, &result) {
					continue
				}

				line, lookupErr := b.deps.Corpus.Lookup(theme, exercise, grade)
				if lookupErr != nil {
					err := b.skipMissing(key, theme, exercise, lookupErr)
					if err != nil {
						return b.finish(result), err
					}

					continue
				}

				if attempted > 0 && !b.opts.DryRun {
					sleepErr := b.deps.Sleep(ctx, b.opts.Pacing)
					if sleepErr != nil {
						return b.finish(result), fmt.Errorf("batch interrupted: %w", sleepErr)
					}
				}

				ctxErr := ctx.Err()
				if ctxErr != nil {
					return b.finish(result), fmt.Errorf("batch interrupted: %w", ctxErr)
				}

				attempted++

				err := b.processItem(ctx, key, theme, exercise, grade, line, &result)
				if err != nil {
					return b.finish(result), err
				}
			}
		}
	}

	return b.finish(result), nil
}

// eligible applies the run mode to one key. In retry mode only failed keys
// are attempted; otherwise completed keys are counted as skipped.
func (b *Batch) eligible(key string, result *Result) bool {
	if b.opts.RetryFailed {
		return b.deps.Journal.IsFailed(key) && !b.deps.Journal.IsCompleted(key)
	}

	if b.deps.Journal.IsCompleted(key) {
		result.Skipped++

		return false
	}

	return true
}

// skipMissing warns about an item without source text and records it in the
// journal's skipped list. Counters are left untouched.
func (b *Batch) skipMissing(key, theme, exercise string, lookupErr error) error {
	warnKey := key

	switch {
	case errors.Is(lookupErr, stories.ErrThemeMissing):
		warnKey = theme
	case errors.Is(lookupErr, stories.ErrExerciseMissing):
		warnKey = theme + "/" + exercise
	}

	if _, seen := b.warned[warnKey]; !seen {
		b.warned[warnKey] = struct{}{}
		b.printf("[WARN] %v\n", lookupErr)
		b.deps.Log.Warn("Skipping %s: %v", warnKey, lookupErr)
	}

	if b.opts.DryRun || b.deps.Journal.IsSkipped(key) {
		return nil
	}

	err := b.deps.Journal.MarkSkipped(key)
	if err != nil {
		return fmt.Errorf("failed to record skipped item %s: %w", key, err)
	}

	saveErr := b.deps.Journal.Save()
	if saveErr != nil {
		return fmt.Errorf(errFmtJournal, key, saveErr)
	}

	return nil
}

func (b *Batch) processItem(
	ctx context.Context,
	key, theme, exercise, grade, line string,
	result *Result,
) error {
	voice, err := tts.LookupVoice(theme, grade)
	if err != nil {
		return fmt.Errorf("no voice for %s: %w", key, err)
	}

	line = b.preprocessor.CollapseWhitespace(line)

	b.printf("\n[TTS] %s\n", key)
	b.printf("%scharacter: %s\n", itemIndent, voice.Character)
	b.printf("%sstyle: %s (rate %.2f)\n", itemIndent, voice.Style, voice.Rate)
	b.printf("%stext: %s\n", itemIndent, text.Preview(b.preprocessor.Normalize(line), text.DefaultPreviewRunes))

	if b.opts.DryRun {
		b.printf("%s[DRY-RUN] skipped\n", itemIndent)

		result.Succeeded++

		return nil
	}

	succeeded := b.synthesizeItem(ctx, key, theme, exercise, grade, line, voice)

	if succeeded {
		result.Succeeded++
		err = b.deps.Journal.MarkSucceeded(key)
	} else {
		result.Failed++
		err = b.deps.Journal.MarkFailed(key)
	}

	if err != nil {
		return fmt.Errorf("failed to record item %s: %w", key, err)
	}

	saveErr := b.deps.Journal.Save()
	if saveErr != nil {
		return fmt.Errorf(errFmtJournal, key, saveErr)
	}

	return nil
}

// synthesizeItem performs the remote call and writes the file. Any failure is
// reported and turns into a failed item rather than an error.
func (b *Batch) synthesizeItem(
	ctx context.Context,
	key, theme, exercise, grade, line string,
	voice tts.Voice,
) bool {
	pcm, err := b.deps.Synthesizer.Synthesize(ctx, core.SpeechRequest{
		Text:  line,
		Voice: voice.Voice,
		Style: voice.Style,
	})
	if err != nil {
		b.printf("%s[FAIL] %v\n", itemIndent, err)
		b.deps.Log.Error(logFmtItemFail, key, err)

		return false
	}

	path := OutputPath(b.opts.OutputDir, theme, exercise, grade)

	size, err := audio.WriteWAV(path, pcm, b.opts.Format)
	if err != nil {
		b.printf("%s[FAIL] save: %v\n", itemIndent, err)
		b.deps.Log.Error("Failed to save audio for %s: %v", key, err)

		return false
	}

	b.printf("%s[OK] saved (%s)\n", itemIndent, humanize.Bytes(uint64(size)))
	b.deps.Log.Info("Saved %s to %s (%d bytes)", key, path, size)

	b.mirror(ctx, key, path)

	return true
}

// mirror copies the written file to the object store and announces it.
// Neither step can fail the item.
func (b *Batch) mirror(ctx context.Context, key, path string) {
	audioKey := key + audio.FORMAT_WAV.Extension()

	if b.deps.Store != nil {
		data, err := os.ReadFile(path)
		if err == nil {
			err = b.deps.Store.Upload(ctx, audioKey, data)
		}

		if err != nil {
			b.deps.Log.Warn("Failed to mirror %s to object store: %v", audioKey, err)
		}
	}

	if b.deps.Publisher != nil {
		err := b.deps.Publisher.PublishAudioCreated(ctx, key, audioKey)
		if err != nil {
			b.deps.Log.Warn("Failed to publish completion of %s: %v", key, err)
		}
	}
}

func (b *Batch) printHeader() {
	total := len(b.opts.Worldviews) * len(b.opts.Exercises) * len(Grades)

	b.printf("\n%s\nHearO TTS batch - Gemini Flash/Pro\n%s\n", rule, rule)
	b.printf("worldviews: %s\n", strings.Join(b.opts.Worldviews, ", "))
	b.printf("exercises: %s\n", strings.Join(b.opts.Exercises, ", "))
	b.printf("grades: %s\n", strings.Join(Grades, ", "))
	b.printf("total files: %d\n", total)

	switch {
	case b.opts.DryRun:
		b.printf("mode: dry-run\n")
	case b.opts.RetryFailed:
		b.printf("mode: retry failed (%d queued)\n", len(b.deps.Journal.Failed()))
	}

	b.printf("%s\n", rule)
}

func (b *Batch) finish(result Result) Result {
	result.TotalCompleted = len(b.deps.Journal.Completed())

	b.printf("\n%s\nResults\n%s\n", rule, rule)
	b.printf("succeeded: %d\n", result.Succeeded)
	b.printf("failed: %d\n", result.Failed)
	b.printf("skipped: %d\n", result.Skipped)
	b.printf("total completed: %d\n", result.TotalCompleted)
	b.printf("%s\n", rule)

	if result.Failed > 0 {
		b.printf("\n%s\n", retryHint)
	}

	b.deps.Log.Info("Batch finished: %d succeeded, %d failed, %d skipped, %d completed in total",
		result.Succeeded, result.Failed, result.Skipped, result.TotalCompleted)

	return result
}

func (b *Batch) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(b.deps.Out, format, args...)
}
