package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/s76354m/AxisRAG/internal/report"
)

const reportsLongDesc string = `List and show analysis reports.

Reports are listed oldest first. show renders a report as Markdown in the
terminal; use --raw for the plain Markdown.

Example:
  axisrag reports
  axisrag reports show report_20250301T120000.000000000Z.json`

// NewReportsCmd returns the reports command with its list and show
// subcommands. Without a subcommand it lists.
func NewReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List and show analysis reports",
		Long:  reportsLongDesc,
		Args:  cobra.NoArgs,
		RunE:  runListReports,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List reports in chronological order",
		Args:  cobra.NoArgs,
		RunE:  runListReports,
	})

	var raw bool
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Render a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := reportWriter(cmd)
			if err != nil {
				return err
			}
			r, err := writer.Load(filepath.Base(args[0]))
			if err != nil {
				return err
			}
			md := r.Markdown()
			if !raw {
				if rendered, err := renderMarkdown(md); err == nil {
					md = rendered
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		},
	}
	show.Flags().BoolVar(&raw, "raw", false, "Print plain Markdown")
	cmd.AddCommand(show)

	return cmd
}

func reportWriter(cmd *cobra.Command) (*report.Writer, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return report.NewWriter(cfg.Paths.ReportsDir, log), nil
}

func runListReports(cmd *cobra.Command, _ []string) error {
	writer, err := reportWriter(cmd)
	if err != nil {
		return err
	}
	names, err := writer.List()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(w, "No reports in %s\n", writer.Dir())
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}
