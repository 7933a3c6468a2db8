// Package cli provides the axisrag command tree.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/s76354m/AxisRAG/internal/config"
	"github.com/s76354m/AxisRAG/internal/logger"
)

const rootLongDesc string = `AxisRAG analyses PDF documents with retrieval-augmented generation.

A document is split into overlapping chunks, embedded, stored in a vector
store and queried with hosted language models. Every analysis session is
written to a timestamped report.

Configuration is read from config.yaml, AXISRAG_* environment variables, the
OPENAI_API_KEY / ANTHROPIC_API_KEY family and a .env file in the working
directory.`

const rootShortDesc string = "AxisRAG - PDF document analysis"

// NewRootCmd returns the axisrag command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "axisrag",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file (default ./config.yaml or ~/.config/axisrag/config.yaml)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-format", string(logger.FormatPretty), "Log format: pretty, text or json")
	cmd.PersistentFlags().String("log-file", "", "Also append logs to this file")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewQueryCmd())
	cmd.AddCommand(NewReportsCmd())
	cmd.AddCommand(NewCheckCmd())

	return cmd
}

// loadConfig resolves the configuration and logger from the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get debug flag: %w", err)
	}
	rawFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get log-format flag: %w", err)
	}
	format, err := logger.ParseFormat(rawFormat)
	if err != nil {
		return nil, nil, err
	}
	logFile, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get log-file flag: %w", err)
	}
	opts := []logger.Option{
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithWriter(cmd.ErrOrStderr()),
	}
	if logFile != "" {
		opts = append(opts, logger.WithLogFile(logFile))
	}
	log := logger.New(opts...)

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get config flag: %w", err)
	}
	v, err := config.InitViper(configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
