package parser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pdfingest/internal/tables"
)

// PageReader is an opened PDF, read one page at a time.
type PageReader interface {
	tables.Source
	NumPages() int
	// PageText returns the digital text of a zero-based page.
	PageText(pageIndex int) (string, error)
	Close() error
}

// Opener opens the PDF at path.
type Opener func(path string) (PageReader, error)

// PDFFile reads pages with ledongthuc/pdf. The library panics on some
// malformed inputs; every entry point converts those panics to errors.
type PDFFile struct {
	path   string
	file   *os.File
	reader *pdflib.Reader
}

// OpenPDF opens and parses the cross-reference table of the PDF at path.
func OpenPDF(path string) (pf *PDFFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			pf, err = nil, fmt.Errorf("open pdf: panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &PDFFile{path: path, file: f, reader: reader}, nil
}

func openPageReader(path string) (PageReader, error) {
	pf, err := OpenPDF(path)
	if err != nil {
		return nil, err
	}
	return pf, nil
}

func (p *PDFFile) Path() string { return p.path }

func (p *PDFFile) NumPages() int { return p.reader.NumPage() }

func (p *PDFFile) Close() error { return p.file.Close() }

func (p *PDFFile) PageText(pageIndex int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d text: panic: %v", pageIndex+1, r)
		}
	}()

	page := p.reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", pageIndex+1, err)
	}
	return text, nil
}

// PageFragments returns the positioned glyph runs of a zero-based page.
func (p *PDFFile) PageFragments(pageIndex int) (frags []tables.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags, err = nil, fmt.Errorf("page %d content: panic: %v", pageIndex+1, r)
		}
	}()

	page := p.reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	content := page.Content()
	frags = make([]tables.Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		frags = append(frags, tables.Fragment{
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
			Text:     t.S,
		})
	}
	return frags, nil
}

// pdftotextPage extracts one zero-based page with poppler's pdftotext.
func pdftotextPage(ctx context.Context, path string, pageIndex int) (string, error) {
	n := strconv.Itoa(pageIndex + 1)
	cmd := exec.CommandContext(ctx, "pdftotext", "-f", n, "-l", n, "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimRight(string(out), "\f"), nil
}
