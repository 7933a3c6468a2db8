package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("hello", "key", "value")

			Expect(buf.String()).To(ContainSubstring("hello"))
			Expect(buf.String()).To(ContainSubstring("key=value"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(false))
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("debug msg")

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("structured", "chunks", 42)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("structured"))
			Expect(parsed["chunks"]).To(BeNumerically("==", 42))
		})

		It("creates a pretty logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty))
			l.Info("pretty output")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("also appends records to a log file", func() {
			var buf bytes.Buffer
			path := filepath.Join(GinkgoT().TempDir(), "logs", "axisrag.log")
			l := logger.New(logger.WithWriter(&buf), logger.WithLogFile(path))
			l.Info("ingested", "chunks", 3)

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("chunks=3"))
			Expect(buf.String()).To(ContainSubstring("chunks=3"))

			logger.New(logger.WithWriter(io.Discard), logger.WithLogFile(path)).Info("second run")
			data, err = os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("ingested"))
			Expect(string(data)).To(ContainSubstring("second run"))
		})

		It("keeps logging to the console when the log file cannot be opened", func() {
			var buf bytes.Buffer
			blocker := filepath.Join(GinkgoT().TempDir(), "file")
			Expect(os.WriteFile(blocker, nil, 0o644)).To(Succeed())

			l := logger.New(logger.WithWriter(&buf), logger.WithLogFile(filepath.Join(blocker, "axisrag.log")))
			l.Info("still here")

			Expect(buf.String()).To(ContainSubstring("log file disabled"))
			Expect(buf.String()).To(ContainSubstring("still here"))
		})
	})

	DescribeTable("ParseFormat",
		func(in string, want logger.Format, ok bool) {
			f, err := logger.ParseFormat(in)
			if !ok {
				Expect(err).To(MatchError(ContainSubstring("unknown log format")))
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(want))
		},
		Entry("pretty", "pretty", logger.FormatPretty, true),
		Entry("upper case json", "JSON", logger.FormatJSON, true),
		Entry("text with spaces", " text ", logger.FormatText, true),
		Entry("unknown", "xml", logger.Format(""), false),
	)

	Describe("Nop", func() {
		It("discards all output", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").Info("msg") }).NotTo(Panic())
		})
	})
})
