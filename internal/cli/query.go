package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type queryCommander struct {
	question   string
	topK       int
	searchOnly bool
}

const queryLongDesc string = `Ask a question against the persisted vector store.

Chunks ingested by earlier analyze runs are retrieved and passed to the
configured answer provider. With --search only the retrieved chunks are shown.

Example:
  axisrag query -q "How are invoices stored?"
  axisrag query -q "ledger schema" --search --top 8`

const queryShortDesc string = "Ask a question against stored documents"

// NewQueryCmd returns the query command.
func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.question == "" {
				return errors.New("a question is required (-q)")
			}
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()
			sess := app.Service.NewSession()
			defer func() {
				if path, err := sess.Close(); err != nil {
					log.Warn("session report not written", "error", err)
				} else if path != "" {
					fmt.Fprintf(w, "\n  %s report written to %s\n", successMark, path)
				}
			}()

			if cmder.searchOnly {
				results, err := sess.Search(cmd.Context(), cmder.question, cmder.topK)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%s %q\n\n", headerStyle.Render("Results for:"), cmder.question)
				printSources(w, results)
				return nil
			}

			a, err := sess.Ask(cmd.Context(), cmder.question, cmder.topK)
			if err != nil {
				return err
			}
			printAnswer(w, a)
			fmt.Fprintln(w)
			printSources(w, a.Sources)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cmder.question, "question", "q", "", "Question to ask")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&cmder.searchOnly, "search", false, "Only retrieve chunks, do not generate an answer")

	return cmd
}
