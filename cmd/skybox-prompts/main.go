// main package for the skybox-prompts command, which renders the 360° skybox
// image prompts of every HearO worldview into a text file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/book-expert/hearo-tools/internal/config"
	"github.com/book-expert/hearo-tools/internal/prompt"
	"github.com/book-expert/logger"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagOutput  = "output"
	flagSeed    = "seed"
	flagCatalog = "catalog"
	flagConfig  = "config"
)

const (
	bootstrapLogFile = "skybox-prompts-bootstrap.log"
	logFile          = "skybox-prompts.log"
)

type promptFlags struct {
	output  string
	seed    uint64
	catalog string
	config  string
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:          "skybox-prompts",
		Short:        "Render the HearO 360° skybox image prompts",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), flags, cmd.Flags().Changed(flagSeed))
		},
	}

	cmd.Flags().StringVarP(&flags.output, flagOutput, "o", "", "output text file (overrides config)")
	cmd.Flags().Uint64Var(&flags.seed, flagSeed, 0, "seed for reproducible time/weather choices")
	cmd.Flags().StringVar(&flags.catalog, flagCatalog, "", "YAML catalog replacing the built-in one")
	cmd.Flags().StringVar(&flags.config, flagConfig, "", "path to a TOML config file")

	return cmd
}

func run(out io.Writer, flags promptFlags, seeded bool) error {
	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	cfg, err := loadConfig(flags.config, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	catalogPath := cfg.Prompts.CatalogFile
	if flags.catalog != "" {
		catalogPath = flags.catalog
	}

	outputPath := cfg.Prompts.OutputFile
	if flags.output != "" {
		outputPath = flags.output
	}

	return render(out, log, catalogPath, outputPath, flags.seed, seeded)
}

func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path == "" {
		return config.Load(log)
	}

	return config.LoadFile(path)
}

func render(out io.Writer, log *logger.Logger, catalogPath, outputPath string, seed uint64, seeded bool) error {
	catalog, err := prompt.LoadCatalog(catalogPath)
	if err != nil {
		log.Error("Failed to load catalog: %v", err)

		return err
	}

	picker := prompt.NewRandomPicker()
	if seeded {
		picker = prompt.NewPicker(seed)
	}

	fmt.Fprintln(out, "Rendering HearO skybox prompts (2:1 equirectangular)")

	for _, theme := range catalog.Themes {
		fmt.Fprintf(out, "   - %s (%d locations)\n", theme.Name, len(theme.Locations))
	}

	prompts, err := prompt.Render(catalog, picker)
	if err != nil {
		return fmt.Errorf("failed to render prompts: %w", err)
	}

	absolute, err := prompt.Write(outputPath, prompts)
	if err != nil {
		log.Error("Failed to write prompts: %v", err)

		return fmt.Errorf("failed to write prompts: %w", err)
	}

	log.Info("Wrote %d prompts to %s (seeded=%t)", len(prompts), absolute, seeded)

	fmt.Fprintf(out, "\nDone: %d prompts rendered.\n", len(prompts))
	fmt.Fprintf(out, "File: %s\n", absolute)

	return nil
}
