package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/loader"
	"github.com/s76354m/AxisRAG/internal/logger"
)

var _ = Describe("PDFLoader", func() {
	var (
		ctx context.Context
		l   *loader.PDFLoader
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		l = loader.NewPDFLoader(logger.Nop())
		dir = GinkgoT().TempDir()
	})

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
		return path
	}

	It("extracts text and page metadata", func() {
		path := write("doc.pdf", buildPDF("First page text", "Second page text"))

		doc, err := l.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.PageCount()).To(Equal(2))
		Expect(doc.Pages[0].Text).To(ContainSubstring("First page text"))
		Expect(doc.Pages[1].Text).To(ContainSubstring("Second page text"))
		Expect(doc.Text).To(Equal(doc.Pages[0].Text + "\n" + doc.Pages[1].Text))
		Expect(doc.Pages[1].Offset).To(Equal(len([]rune(doc.Pages[0].Text)) + 1))
		Expect(doc.PageAt(doc.Pages[1].Offset)).To(Equal(2))
	})

	It("keeps empty pages so numbering stays stable", func() {
		path := write("gap.pdf", buildPDF("Cover", "", "Appendix"))

		doc, err := l.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.PageCount()).To(Equal(3))
		Expect(doc.Pages[1].Text).To(BeEmpty())
		Expect(doc.Pages[2].Number).To(Equal(3))
		Expect(strings.Count(doc.Text, "\n")).To(BeNumerically(">=", 2))
	})

	It("derives the same ID for the same file", func() {
		path := write("same.pdf", buildPDF("Stable"))

		a, err := l.Load(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		b, err := l.Load(ctx, filepath.Join(dir, ".", "same.pdf"))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.ID).To(Equal(b.ID))
		Expect(a.ID).To(HaveLen(16))
	})

	It("rejects a missing file", func() {
		_, err := l.Load(ctx, filepath.Join(dir, "nope.pdf"))
		Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("rejects files without a PDF header", func() {
		path := write("notes.pdf", []byte("just some text"))
		_, err := l.Load(ctx, path)
		Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
	})

	It("rejects a truncated PDF", func() {
		path := write("broken.pdf", []byte("%PDF-1.4\n1 0 obj\n<<"))
		_, err := l.Load(ctx, path)
		Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
	})

	It("rejects a PDF without extractable text", func() {
		path := write("blank.pdf", buildPDF(""))
		_, err := l.Load(ctx, path)
		Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("no extractable text"))
	})

	It("rejects directories", func() {
		_, err := l.Load(ctx, dir)
		Expect(errors.Is(err, domain.ErrDocumentLoad)).To(BeTrue())
	})

	It("honours a cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := l.Load(cctx, write("c.pdf", buildPDF("x")))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
