package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s76354m/AxisRAG/internal/config"
)

const checkLongDesc string = `Verify the local setup.

Checks that the configuration is valid, API keys are present, the reports and
data directories are writable and, unless --offline is set, that the embedder
and vector store can be reached. --write-config saves the effective
configuration so it can be reused with --config.`

// NewCheckCmd returns the check command.
func NewCheckCmd() *cobra.Command {
	var (
		offline     bool
		writeConfig string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify API keys, directories and the vector store",
		Long:  checkLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			cfg, log, err := loadConfig(cmd)
			step(w, "configuration is valid", err)
			if err != nil {
				return err
			}

			if writeConfig != "" {
				err := config.Save(writeConfig, cfg)
				step(w, "wrote effective configuration to "+writeConfig, err)
				if err != nil {
					return err
				}
			}

			failed := runChecks(w, cfg)
			if !offline {
				app, err := NewApp(cmd.Context(), cfg, log)
				if err == nil {
					err = app.Store.Init(cmd.Context(), app.Embedder.Dimension())
					app.Close()
				}
				step(w, fmt.Sprintf("%s embedder and %s vector store reachable", cfg.EmbedderType(), cfg.VectorStore.Type), err)
				if err != nil {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that contact external services")
	cmd.Flags().StringVar(&writeConfig, "write-config", "", "Write the effective configuration (without API keys) to this YAML file")

	return cmd
}

func step(w io.Writer, msg string, err error) {
	if err != nil {
		fmt.Fprintf(w, "  %s %s: %v\n", mark(err), msg, err)
		return
	}
	fmt.Fprintf(w, "  %s %s\n", mark(err), msg)
}

// runChecks prints one line per local check and returns the number of
// failures. Missing API keys only fail when no provider is usable.
func runChecks(w io.Writer, cfg *config.Config) int {
	failed := 0

	keys := 0
	for _, k := range []struct{ name, value string }{
		{"OPENAI_API_KEY", cfg.OpenAI.APIKey},
		{"ANTHROPIC_API_KEY", cfg.Anthropic.APIKey},
	} {
		if k.value != "" {
			keys++
			step(w, k.name+" is set", nil)
		} else {
			fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("-"), dimStyle.Render(k.name+" is not set"))
		}
	}
	if keys == 0 {
		step(w, "answer provider available", errors.New("set OPENAI_API_KEY or ANTHROPIC_API_KEY"))
		failed++
	}

	for _, d := range []struct{ name, dir string }{
		{"reports dir", cfg.Paths.ReportsDir},
		{"data dir", cfg.Paths.DataDir},
	} {
		err := ensureDir(d.dir)
		step(w, fmt.Sprintf("%s %s is writable", d.name, d.dir), err)
		if err != nil {
			failed++
		}
	}
	return failed
}
