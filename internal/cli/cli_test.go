package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/config"
	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/embedding/local"
	"github.com/s76354m/AxisRAG/internal/llm/anthropic"
	"github.com/s76354m/AxisRAG/internal/logger"
	"github.com/s76354m/AxisRAG/internal/report"
)

func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func run(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var _ = Describe("axisrag", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)
		for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "AXISRAG_OPENAI_API_KEY", "AXISRAG_ANTHROPIC_API_KEY"} {
			setenv(key, "")
		}
		setenv("AXISRAG_VECTOR_STORE_TYPE", "memory")
		setenv("AXISRAG_PATHS_REPORTS_DIR", filepath.Join(dir, "reports"))
		setenv("AXISRAG_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	})

	Describe("NewApp", func() {
		It("wires the local embedder and memory store without API keys", func() {
			cfg := config.NewDefaultConfig()
			cfg.VectorStore.Type = "memory"
			cfg.Paths.ReportsDir = filepath.Join(dir, "reports")

			app, err := NewApp(context.Background(), cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer app.Close()

			Expect(app.Embedder.Name()).To(Equal(local.Name))
			Expect(app.Embedder.Dimension()).To(Equal(cfg.Embedder.Dimensions))
			Expect(app.Store.Name()).To(Equal("memory"))
			Expect(app.Generator).To(BeNil())

			res, err := app.Service.Search(context.Background(), "anything", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeEmpty())
		})

		It("uses a per-embedder sqlite file", func() {
			cfg := config.NewDefaultConfig()
			cfg.Paths.DataDir = filepath.Join(dir, "data")

			app, err := NewApp(context.Background(), cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(app.Store.Init(context.Background(), app.Embedder.Dimension())).To(Succeed())
			Expect(app.Close()).To(Succeed())
			Expect(filepath.Join(dir, "data", "chunks_local_512.db")).To(BeAnExistingFile())
		})

		It("skips providers without an API key", func() {
			cfg := config.NewDefaultConfig()
			cfg.Anthropic.APIKey = "sk-ant-test"

			providers := newProviders(cfg, logger.Nop())
			Expect(providers).To(HaveLen(1))
			Expect(providers[0].Name()).To(Equal(anthropic.Name))
		})
	})

	Describe("check", func() {
		It("fails without any API key", func() {
			out, err := run("check", "--offline")
			Expect(err).To(MatchError("1 check(s) failed"))
			Expect(out).To(ContainSubstring("configuration is valid"))
			Expect(out).To(ContainSubstring("set OPENAI_API_KEY or ANTHROPIC_API_KEY"))
		})

		It("passes with a key and writable directories", func() {
			setenv("ANTHROPIC_API_KEY", "sk-ant-test")
			out, err := run("check", "--offline")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("ANTHROPIC_API_KEY is set"))
			Expect(filepath.Join(dir, "reports")).To(BeADirectory())
		})

		It("writes the effective configuration without keys", func() {
			setenv("ANTHROPIC_API_KEY", "sk-ant-test")
			path := filepath.Join(dir, "conf", "axisrag.yaml")
			_, err := run("check", "--offline", "--write-config", path)
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("type: memory"))
			Expect(string(data)).NotTo(ContainSubstring("sk-ant-test"))
		})

		It("appends logs to --log-file", func() {
			setenv("ANTHROPIC_API_KEY", "sk-ant-test")
			path := filepath.Join(dir, "logs", "axisrag.log")
			_, err := run("check", "--offline", "--debug", "--log-format", "json", "--log-file", path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeAnExistingFile())
		})

		It("rejects an unknown log format", func() {
			_, err := run("check", "--offline", "--log-format", "xml")
			Expect(err).To(MatchError(ContainSubstring("unknown log format")))
		})

		It("reports invalid configuration", func() {
			setenv("CHUNK_OVERLAP", "5000")
			_, err := run("check", "--offline")
			Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("reports", func() {
		It("says when there are none", func() {
			out, err := run("reports")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("No reports in"))
		})

		It("lists and shows written reports", func() {
			r := report.New()
			r.Summary = "A summary worth reading."
			path, err := report.NewWriter(filepath.Join(dir, "reports"), logger.Nop()).Write(r)
			Expect(err).NotTo(HaveOccurred())
			name := filepath.Base(path)

			out, err := run("reports", "list")
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.TrimSpace(out)).To(Equal(name))

			out, err = run("reports", "show", name, "--raw")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("A summary worth reading."))
			Expect(out).To(ContainSubstring(r.SessionID))
		})

		It("fails for unknown reports", func() {
			_, err := run("reports", "show", "report_20000101T000000.000000000Z.json")
			Expect(errors.Is(err, report.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("analyze", func() {
		It("requires a PDF unless the dashboard is requested", func() {
			_, err := run("analyze")
			Expect(err).To(MatchError(ContainSubstring("--pdf_path is required")))
		})

		It("writes a report recording a load failure", func() {
			missing := filepath.Join(dir, "missing.pdf")
			out, err := run("analyze", "--pdf_path", missing)
			Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
			Expect(out).To(ContainSubstring("report written to"))

			entries, err := os.ReadDir(filepath.Join(dir, "reports"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})

		It("writes a session report when the shell cannot start", func() {
			missing := filepath.Join(dir, "missing.pdf")
			out, err := run("analyze", "--pdf_path", missing, "--shell")
			Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
			Expect(out).To(ContainSubstring("session report written to"))

			names, err := report.NewWriter(filepath.Join(dir, "reports"), logger.Nop()).List()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(HaveLen(1))
		})
	})

	Describe("query", func() {
		It("requires a question", func() {
			_, err := run("query")
			Expect(err).To(MatchError(ContainSubstring("a question is required")))
		})

		It("searches the store without a provider", func() {
			out, err := run("query", "-q", "ledger", "--search")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("(no sources)"))
		})

		It("writes a report for each query", func() {
			_, err := run("query", "-q", "ledger", "--search")
			Expect(err).NotTo(HaveOccurred())
			out, err := run("query", "-q", "invoices", "--search")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("report written to"))

			reports := report.NewWriter(filepath.Join(dir, "reports"), logger.Nop())
			names, err := reports.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(HaveLen(2))
			rep, err := reports.Load(names[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Entries).To(HaveLen(1))
			Expect(rep.Entries[0].Question).To(Equal("invoices"))
		})

		It("fails at the generate stage without a provider", func() {
			_, err := run("query", "-q", "ledger")
			stage, ok := domain.StageOf(err)
			Expect(ok).To(BeTrue())
			Expect(stage).To(Equal(domain.StageGenerate))
		})
	})
})
