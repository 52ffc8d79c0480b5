package parser

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/pdfingest/internal/metrics"
	"github.com/dgallion1/pdfingest/internal/tables"
)

// OCRMarker prefixes page text that came from OCR.
const OCRMarker = "[OCR]\n"

// DefaultMinTextChars is the trimmed digital text length below which a page is OCRed.
const DefaultMinTextChars = 20

// Recognizer returns the OCR transcript of a zero-based page.
type Recognizer interface {
	Recognize(ctx context.Context, path string, pageIndex int) (string, error)
}

// ExtractorConfig controls per-page extraction.
type ExtractorConfig struct {
	MinTextChars int

	// IsolateOCRFailures keeps the digital text of a page whose OCR failed
	// instead of failing the whole file.
	IsolateOCRFailures bool

	// Pdftotext retries digital extraction with poppler's pdftotext when
	// the native reader errors on a page or finds no text.
	Pdftotext bool
}

// PageExtractor turns one page into text in three stages: digital text,
// OCR fallback, then table rows.
type PageExtractor struct {
	cfg    ExtractorConfig
	ocr    Recognizer
	tables *tables.RowExtractor
	log    *slog.Logger
}

// NewPageExtractor builds an extractor. A nil recognizer disables the OCR
// fallback and a nil row extractor disables tables.
func NewPageExtractor(cfg ExtractorConfig, ocr Recognizer, rows *tables.RowExtractor, log *slog.Logger) *PageExtractor {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	return &PageExtractor{cfg: cfg, ocr: ocr, tables: rows, log: log}
}

// Extract returns the text of a zero-based page. The only error it returns
// is an OCR failure, unless IsolateOCRFailures is set.
func (e *PageExtractor) Extract(ctx context.Context, doc PageReader, pageIndex int) (string, error) {
	text := e.extractDigital(ctx, doc, pageIndex)

	source := "digital"
	if e.needsOCR(text) && e.ocr != nil {
		transcript, err := e.ocrFallback(ctx, doc.Path(), pageIndex)
		switch {
		case err == nil:
			text = transcript
			source = "ocr"
		case e.cfg.IsolateOCRFailures:
			e.log.Warn("ocr failed, keeping digital text",
				"file", doc.Path(), "page", pageIndex+1, "error", err)
		default:
			return "", err
		}
	}
	metrics.PagesTotal.WithLabelValues(source).Inc()

	return e.appendTables(text, doc, pageIndex), nil
}

// Release is called once the file at path has been fully extracted.
func (e *PageExtractor) Release(path string) {
	e.tables.Release(path)
}

// extractDigital returns the page's embedded text. Errors mean "no text".
func (e *PageExtractor) extractDigital(ctx context.Context, doc PageReader, pageIndex int) string {
	text, err := doc.PageText(pageIndex)
	if e.cfg.Pdftotext && (err != nil || strings.TrimSpace(text) == "") {
		if alt, perr := pdftotextPage(ctx, doc.Path(), pageIndex); perr == nil {
			text, err = alt, nil
		}
	}
	if err != nil {
		e.log.Debug("no digital text", "file", doc.Path(), "page", pageIndex+1, "error", err)
		return ""
	}
	return text
}

func (e *PageExtractor) needsOCR(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < e.cfg.MinTextChars
}

func (e *PageExtractor) ocrFallback(ctx context.Context, path string, pageIndex int) (string, error) {
	e.log.Info("using ocr", "file", path, "page", pageIndex+1)
	transcript, err := e.ocr.Recognize(ctx, path, pageIndex)
	if err != nil {
		return "", err
	}
	return OCRMarker + transcript, nil
}

func (e *PageExtractor) appendTables(text string, doc PageReader, pageIndex int) string {
	rows := e.tables.Extract(doc, pageIndex)
	if len(rows) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	for _, row := range rows {
		b.WriteString("\n--- Table ")
		b.WriteString(strconv.Itoa(row.Table))
		b.WriteString(" on Page ")
		b.WriteString(strconv.Itoa(row.Page))
		b.WriteString(" ---\n")
		b.WriteString(row.Text)
		b.WriteString("\n")
	}
	return b.String()
}
