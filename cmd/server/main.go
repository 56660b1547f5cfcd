package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/animal-api/internal/config"
	"github.com/Brownie44l1/animal-api/internal/model"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "animal-api",
		Short: "Animal recognition on top of an ImageNet ONNX model",
		Long: `animal-api classifies images with a pretrained ImageNet model and groups the
top labels into coarse animal categories such as Dog, Cat and Bird.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newClassifyCommand())

	return rootCmd
}

// setup loads config, applies the log level and loads the classifier.
func setup(cmd *cobra.Command) (*config.Config, *model.Classifier, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	classifier, err := model.Load(model.LoadConfig{
		ModelName:   cfg.ModelName,
		ModelDir:    cfg.ModelDir,
		LibraryPath: cfg.ORTLibraryPath,
		Logger:      log.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	return cfg, classifier, nil
}
