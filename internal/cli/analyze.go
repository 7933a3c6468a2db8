package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/s76354m/AxisRAG/internal/config"
	"github.com/s76354m/AxisRAG/internal/dashboard"
	"github.com/s76354m/AxisRAG/internal/report"
	"github.com/s76354m/AxisRAG/internal/service"
	"github.com/s76354m/AxisRAG/internal/tui"
)

type analyzeCommander struct {
	pdfPath   string
	questions []string
	compare   bool
	shell     bool
	web       bool
	listen    string
	topK      int
}

const analyzeLongDesc string = `Analyze a PDF document.

The document is ingested into the vector store and every question is answered
with retrieved context. Without --question the standard analysis sections are
asked: technical architecture, data model, integration points and control
structure. A JSON and Markdown report is written to the reports directory.

Example:
  axisrag analyze --pdf_path design.pdf
  axisrag analyze --pdf_path design.pdf --question "Which database is used?" --compare
  axisrag analyze --pdf_path design.pdf --shell
  axisrag analyze --interface --listen :8501`

const analyzeShortDesc string = "Analyze a PDF document"

// NewAnalyzeCmd returns the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmder := &analyzeCommander{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Dashboard.Listen = cmder.listen
			}
			if !cmder.web && cmder.pdfPath == "" {
				return errors.New("--pdf_path is required unless --interface is set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			if cmder.web {
				return cmder.serve(ctx, cmd.OutOrStdout(), app)
			}
			return cmder.run(ctx, cmd.OutOrStdout(), app)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.pdfPath, "pdf_path", "", "Path to the PDF document")
	cmd.Flags().StringArrayVarP(&cmder.questions, "question", "q", nil, "Question to ask (repeatable)")
	cmd.Flags().BoolVar(&cmder.compare, "compare", false, "Ask every configured provider and record all answers")
	cmd.Flags().BoolVar(&cmder.shell, "shell", false, "Open the interactive shell after ingestion")
	cmd.Flags().BoolVar(&cmder.web, "interface", false, "Launch the web dashboard")
	cmd.Flags().StringVar(&cmder.listen, "listen", defaults.Dashboard.Listen, "Address for the dashboard to listen on")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of chunks to retrieve per question (default from config)")

	return cmd
}

func (c *analyzeCommander) run(ctx context.Context, w io.Writer, app *App) (runErr error) {
	sess := app.Service.NewSession()
	if c.shell {
		defer func() {
			path, err := sess.Close()
			if path != "" {
				fmt.Fprintf(w, "\n  %s session report written to %s\n", successMark, path)
			}
			runErr = errors.Join(runErr, err)
		}()
	}

	if c.shell && len(c.questions) == 0 {
		ing, err := sess.Ingest(ctx, c.pdfPath)
		fmt.Fprintf(w, "  %s ingest %s\n", mark(err), c.pdfPath)
		if err != nil {
			return err
		}
		printIngestion(w, ing)
	} else {
		rep, path, err := app.Service.Analyze(ctx, c.pdfPath, service.AnalyzeOptions{
			Sections: service.Questions(c.questions),
			Compare:  c.compare,
			TopK:     c.topK,
		})
		printReport(w, rep)
		if path != "" {
			fmt.Fprintf(w, "\n  %s report written to %s\n", successMark, path)
		}
		if err != nil || !c.shell {
			return err
		}
	}

	title, summary := filepath.Base(c.pdfPath), ""
	if cur := sess.Current(); cur != nil {
		summary = cur.Summary
	}
	m := tui.New(ctx, sess, title, summary, c.topK)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *analyzeCommander) serve(ctx context.Context, w io.Writer, app *App) error {
	if c.pdfPath != "" {
		ing, err := app.Service.Ingest(ctx, c.pdfPath)
		fmt.Fprintf(w, "  %s ingest %s\n", mark(err), c.pdfPath)
		if err != nil {
			return err
		}
		printIngestion(w, ing)
	}

	server := dashboard.NewServer(dashboard.Config{
		ListenAddr:  app.Config.Dashboard.Listen,
		DefaultTopK: app.Config.Generator.TopK,
	}, app.Service, app.Reports, app.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()
	fmt.Fprintf(w, "  %s dashboard listening on %s\n", successMark, app.Config.Dashboard.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		app.Logger.Info("shutting down dashboard")
		return server.Shutdown()
	}
}

func printIngestion(w io.Writer, ing *service.Ingestion) {
	d := ing.Document
	fmt.Fprintf(w, "    %s\n", dimStyle.Render(fmt.Sprintf("%d pages, %d chunks, document %s", d.Pages, d.Chunks, d.ID)))
	if ing.Summary != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", headerStyle.Render("Summary"), ing.Summary)
	}
}

func printReport(w io.Writer, rep *report.Report) {
	if rep == nil {
		return
	}
	if rep.Document != nil {
		printIngestion(w, &service.Ingestion{Document: *rep.Document, Summary: rep.Summary})
	}
	for _, e := range rep.Entries {
		title := e.Title
		if title == "" {
			title = e.Question
		}
		fmt.Fprintf(w, "\n%s\n", headerStyle.Render("== "+title))
		for _, a := range e.Answers {
			printAnswer(w, a)
		}
		if e.Error != "" {
			fmt.Fprintf(w, "  %s %s\n", failMark, e.Error)
		}
		fmt.Fprintln(w)
		printSources(w, e.Sources)
	}
	for _, f := range rep.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", failMark, f.Stage, f.Message)
	}
}
