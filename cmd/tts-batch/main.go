// main package for the tts-batch command, which synthesizes the prerendered
// narration audio of every worldview, exercise and grade.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/hearo-tools/internal/config"
	"github.com/book-expert/hearo-tools/internal/core"
	"github.com/book-expert/hearo-tools/internal/journal"
	"github.com/book-expert/hearo-tools/internal/notify"
	"github.com/book-expert/hearo-tools/internal/objectstore"
	"github.com/book-expert/hearo-tools/internal/stories"
	"github.com/book-expert/hearo-tools/internal/tts"
	"github.com/book-expert/hearo-tools/internal/tts/audio"
	"github.com/book-expert/hearo-tools/internal/worker"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagWorldview   = "worldview"
	flagExercise    = "exercise"
	flagNewOnly     = "new-only"
	flagDryRun      = "dry-run"
	flagReset       = "reset"
	flagRetryFailed = "retry-failed"
	flagAPIKey      = "api-key"
	flagConfig      = "config"
	flagStories     = "stories"
	flagOutput      = "output"
	flagProgress    = "progress"
)

const (
	apiKeyEnv           = "GEMINI_API_KEY"
	bootstrapLogFile    = "tts-batch-bootstrap.log"
	logFile             = "tts-batch.log"
	natsClientName      = "hearo-tts-batch"
	errFmtFinalLogger   = "failed to create final logger: %w"
	logFmtNATSDisabled  = "NATS mirror disabled: %v"
	msgJournalResetDone = "[INFO] progress journal reset"
)

// ErrAPIKeyMissing indicates that no credential was found outside dry-run mode.
var ErrAPIKeyMissing = errors.New("gemini api key required: pass --api-key or set " + apiKeyEnv)

// batchFlags holds the parsed command-line flag values.
type batchFlags struct {
	worldview   string
	exercise    string
	newOnly     bool
	dryRun      bool
	reset       bool
	retryFailed bool
	apiKey      string
	config      string
	stories     string
	output      string
	progress    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:          "tts-batch",
		Short:        "Synthesize the prerendered narration audio with Gemini TTS",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := worker.SelectWorldviews(flags.worldview)
			if err != nil {
				return err
			}

			_, err = worker.SelectExercises(flags.exercise, flags.newOnly)

			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.worldview, flagWorldview, "w", "", "only this worldview")
	cmd.Flags().StringVarP(&flags.exercise, flagExercise, "e", "", "only this exercise")
	cmd.Flags().BoolVar(&flags.newOnly, flagNewOnly, false, "only the new exercises (lunge, bicep_curl, arm_raise)")
	cmd.Flags().BoolVar(&flags.dryRun, flagDryRun, false, "list the work without calling the API or writing files")
	cmd.Flags().BoolVar(&flags.reset, flagReset, false, "clear the progress journal before running")
	cmd.Flags().BoolVar(&flags.retryFailed, flagRetryFailed, false, "only retry items recorded as failed")
	cmd.Flags().StringVarP(&flags.apiKey, flagAPIKey, "k", "", "Gemini API key (defaults to $"+apiKeyEnv+")")
	cmd.Flags().StringVar(&flags.config, flagConfig, "", "path to a TOML config file")
	cmd.Flags().StringVar(&flags.stories, flagStories, "", "story corpus JSON (overrides config)")
	cmd.Flags().StringVar(&flags.output, flagOutput, "", "audio output root (overrides config)")
	cmd.Flags().StringVar(&flags.progress, flagProgress, "", "progress journal path (overrides config)")

	return cmd
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run(ctx context.Context, out io.Writer, flags batchFlags) error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	_ = godotenv.Load()

	cfg, err := loadConfig(flags, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf(errFmtFinalLogger, err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return runBatch(ctx, out, flags, cfg, finalLog)
}

// loadConfig reads the explicit config file, or asks the central
// configurator, then applies the path overrides given on the command line.
func loadConfig(flags batchFlags, log *logger.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flags.config != "" {
		cfg, err = config.LoadFile(flags.config)
	} else {
		cfg, err = config.Load(log)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.stories != "" {
		cfg.Batch.StoriesFile = flags.stories
	}

	if flags.output != "" {
		cfg.Batch.OutputDir = flags.output
	}

	if flags.progress != "" {
		cfg.Batch.ProgressFile = flags.progress
	}

	return cfg, nil
}

func runBatch(ctx context.Context, out io.Writer, flags batchFlags, cfg *config.Config, log *logger.Logger) error {
	apiKey := flags.apiKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnv)
	}

	if apiKey == "" && !flags.dryRun {
		log.Error("No Gemini API key available")

		return ErrAPIKeyMissing
	}

	corpus, err := stories.Load(cfg.Batch.StoriesFile)
	if err != nil {
		log.Error("Failed to load story corpus: %v", err)

		return err
	}

	progress, err := openJournal(out, cfg.Batch.ProgressFile, flags)
	if err != nil {
		log.Error("Failed to open progress journal: %v", err)

		return err
	}

	worldviews, err := worker.SelectWorldviews(flags.worldview)
	if err != nil {
		return err
	}

	exercises, err := worker.SelectExercises(flags.exercise, flags.newOnly)
	if err != nil {
		return err
	}

	deps := worker.Dependencies{
		Synthesizer: nil,
		Journal:     progress,
		Corpus:      corpus,
		Store:       nil,
		Publisher:   nil,
		Log:         log,
		Out:         out,
		Sleep:       tts.Sleep,
	}

	if !flags.dryRun {
		deps.Synthesizer, err = newSynthesizer(ctx, cfg, apiKey, log)
		if err != nil {
			return err
		}

		closeNATS := attachNATS(ctx, cfg.NATS, &deps, log)
		defer closeNATS()
	}

	format := audio.NewDefaultFormat()
	format.SampleRate = cfg.Gemini.SampleRate

	batch, err := worker.NewBatch(deps, worker.Options{
		Worldviews:  worldviews,
		Exercises:   exercises,
		OutputDir:   cfg.Batch.OutputDir,
		Format:      format,
		Pacing:      cfg.Batch.Pacing(),
		DryRun:      flags.dryRun,
		RetryFailed: flags.retryFailed,
	})
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	log.System("Starting speech batch: %d worldviews, %d exercises, dry-run=%t, retry-failed=%t",
		len(worldviews), len(exercises), flags.dryRun, flags.retryFailed)

	_, err = batch.Run(ctx)
	if err != nil {
		log.Error("Batch stopped: %v", err)

		return fmt.Errorf("batch stopped: %w", err)
	}

	return nil
}

// openJournal loads the progress journal, or clears it when --reset is given.
// A reset during a dry run is not written to disk.
func openJournal(out io.Writer, path string, flags batchFlags) (*journal.Journal, error) {
	if !flags.reset {
		return journal.Load(path)
	}

	progress := journal.New(path)

	if !flags.dryRun {
		err := progress.Save()
		if err != nil {
			return nil, fmt.Errorf("failed to reset journal: %w", err)
		}
	}

	fmt.Fprintln(out, msgJournalResetDone)

	return progress, nil
}

func newSynthesizer(
	ctx context.Context,
	cfg *config.Config,
	apiKey string,
	log *logger.Logger,
) (*tts.FallbackSynthesizer, error) {
	client, err := tts.NewGeminiClient(ctx, tts.ClientConfig{
		APIKey:     apiKey,
		BaseURL:    cfg.Gemini.APIBase,
		APIVersion: cfg.Gemini.APIVersion,
		HTTPClient: tts.NewHTTPClient(cfg.Gemini.Timeout()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	tiers := tts.DefaultTiers(cfg.Gemini.PrimaryModel, cfg.Gemini.FallbackModel, cfg.Gemini.RateLimitRetries)

	synth, err := tts.NewFallbackSynthesizer(client, tiers, cfg.Gemini.RateLimitBackoff(), log,
		tts.WithRequestTimeout(cfg.Gemini.Timeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	return synth, nil
}

// attachNATS wires the optional audio mirror and completion events into deps.
// NATS problems only disable the mirror; the batch itself still runs.
func attachNATS(ctx context.Context, natsCfg config.NATSConfig, deps *worker.Dependencies, log *logger.Logger) func() {
	noop := func() {}

	if !natsCfg.Enabled() {
		return noop
	}

	natsConnection, err := nats.Connect(natsCfg.URL, nats.Name(natsClientName))
	if err != nil {
		log.Warn(logFmtNATSDisabled, err)

		return noop
	}

	if natsCfg.AudioObjectStoreBucket != "" {
		store, storeErr := newStore(ctx, natsConnection, natsCfg.AudioObjectStoreBucket)
		if storeErr != nil {
			log.Warn(logFmtNATSDisabled, storeErr)
		} else {
			deps.Store = store
		}
	}

	if natsCfg.AudioCreatedSubject != "" {
		publisher, pubErr := notify.NewNatsPublisher(natsConnection, natsCfg.AudioCreatedSubject, "")
		if pubErr != nil {
			log.Warn(logFmtNATSDisabled, pubErr)
		} else {
			deps.Publisher = publisher
			log.Info("Publishing completions on %s (workflow %s)", natsCfg.AudioCreatedSubject, publisher.WorkflowID())
		}
	}

	return func() {
		drainErr := natsConnection.Drain()
		if drainErr != nil {
			log.Warn("Failed to drain NATS connection: %v", drainErr)
		}
	}
}

func newStore(ctx context.Context, natsConnection *nats.Conn, bucket string) (core.ObjectStore, error) {
	js, err := jetstream.New(natsConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	store, err := objectstore.New(ctx, js, bucket)
	if err != nil {
		return nil, err
	}

	return store, nil
}
