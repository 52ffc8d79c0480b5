package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/pdfingest/internal/tables"
)

// placedText is a single Tj run at an absolute text position.
type placedText struct {
	x, y float64
	s    string
}

// buildPDF writes a one-page PDF that shows each run in 10pt Helvetica.
// Every printable ASCII glyph is 500 units wide, so a run of n glyphs
// spans 5n points.
func buildPDF(t *testing.T, path string, runs []placedText) {
	t.Helper()

	var content bytes.Buffer
	for _, r := range runs {
		fmt.Fprintf(&content, "BT /F1 10 Tf %g %g Td (%s) Tj ET\n", r.x, r.y, r.s)
	}

	widths := strings.TrimSpace(strings.Repeat("500 ", 126-32+1))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// reportRuns is a heading followed by a two-column, three-row table.
var reportRuns = []placedText{
	{72, 750, "Quarterly report for the northern region"},
	{72, 700, "Name"}, {200, 700, "Amount"},
	{72, 685, "Alice"}, {200, 685, "100"},
	{72, 670, "Bob"}, {200, 670, "250"},
}

func TestPDFFile_ReadsTextAndFragments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	buildPDF(t, path, reportRuns)

	pf, err := OpenPDF(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pf.Close()

	if pf.NumPages() != 1 {
		t.Fatalf("expected 1 page, got %d", pf.NumPages())
	}
	text, err := pf.PageText(0)
	if err != nil {
		t.Fatalf("page text: %v", err)
	}
	for _, want := range []string{"Quarterly report", "Alice", "250"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected page text to contain %q, got %q", want, text)
		}
	}

	frags, err := pf.PageFragments(0)
	if err != nil {
		t.Fatalf("fragments: %v", err)
	}
	var alice *tables.Fragment
	for i := range frags {
		if frags[i].Text == "A" && frags[i].Y == 685 {
			alice = &frags[i]
			break
		}
	}
	if alice == nil {
		t.Fatalf("expected a glyph for Alice at y=685, got %d fragments", len(frags))
	}
	if alice.X != 72 || alice.W != 5 || alice.FontSize != 10 {
		t.Errorf("unexpected glyph geometry %+v", *alice)
	}
}

func TestPDFFile_GeometricTableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	buildPDF(t, path, reportRuns)

	pf, err := OpenPDF(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pf.Close()

	e := newExtractor(ExtractorConfig{}, nil, tables.NewGeometricDetector(tables.DefaultConfig()))
	text, err := e.Extract(context.Background(), pf, 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := "\n--- Table 1 on Page 1 ---\nRow 1 | Name: Alice | Amount: 100\n" +
		"\n--- Table 1 on Page 1 ---\nRow 2 | Name: Bob | Amount: 250\n"
	if !strings.HasSuffix(text, want) {
		t.Errorf("expected table rows at the end of the page, got %q", text)
	}
	if strings.HasPrefix(text, OCRMarker) {
		t.Error("digital page should not be marked as OCR")
	}
}

func TestOpenPDF_RejectsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pdf")
	buildPDF(t, good, reportRuns)
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}

	garbage := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte(strings.Repeat("this is not a pdf. ", 10)), 0o644); err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.pdf")
	if err := os.WriteFile(truncated, data[:len(data)/2], 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, truncated} {
		pf, err := OpenPDF(path)
		if err == nil {
			pf.Close()
			t.Errorf("%s: expected an error", filepath.Base(path))
			continue
		}
		if !strings.Contains(err.Error(), "open pdf: not a PDF file") {
			t.Errorf("%s: unexpected error %v", filepath.Base(path), err)
		}
	}
}

func TestAssembleFolder_RealPDFs(t *testing.T) {
	dir := t.TempDir()
	buildPDF(t, filepath.Join(dir, "report.pdf"), reportRuns)
	if err := os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte(strings.Repeat("x", 200)), 0o644); err != nil {
		t.Fatal(err)
	}

	rows := tables.NewRowExtractor(tables.NewGeometricDetector(tables.DefaultConfig()), discardLogger())
	pages := NewPageExtractor(ExtractorConfig{}, nil, rows, discardLogger())
	batch, err := NewAssembler(pages, AssemblerConfig{}, discardLogger()).AssembleFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batch.Documents) != 1 || batch.Documents[0].Source != "report.pdf" {
		t.Fatalf("expected report.pdf to assemble, got %+v", batch.Documents)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Source != "broken.pdf" {
		t.Fatalf("expected broken.pdf to fail, got %+v", batch.Failures)
	}
	doc := batch.Documents[0]
	if !strings.HasPrefix(doc.Text, "\nPage 1:\n") {
		t.Errorf("expected page header first, got %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Row 1 | Name: Alice | Amount: 100") {
		t.Errorf("expected table row in document, got %q", doc.Text)
	}
}
