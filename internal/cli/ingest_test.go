package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pdfingest/internal/chunker"
	"github.com/dgallion1/pdfingest/internal/indexer"
	"github.com/dgallion1/pdfingest/internal/parser"
	"github.com/dgallion1/pdfingest/internal/pipeline"
	"github.com/dgallion1/pdfingest/internal/tables"
)

type pagesPDF struct {
	path  string
	pages []string
}

func (p *pagesPDF) Path() string                                 { return p.path }
func (p *pagesPDF) NumPages() int                                { return len(p.pages) }
func (p *pagesPDF) PageText(i int) (string, error)               { return p.pages[i], nil }
func (p *pagesPDF) PageFragments(int) ([]tables.Fragment, error) { return nil, nil }
func (p *pagesPDF) Close() error                                 { return nil }

var corpus = map[string][]string{
	"contract.pdf": {"The contractor shall deliver the goods by the agreed date."},
	"invoice.pdf":  {"Invoice for services rendered in the month of March."},
}

func testIngester() *pipeline.Ingester {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := func(path string) (parser.PageReader, error) {
		pages, ok := corpus[filepath.Base(path)]
		if !ok {
			return nil, errors.New("open pdf: malformed PDF")
		}
		return &pagesPDF{path: path, pages: pages}, nil
	}
	pages := parser.NewPageExtractor(parser.ExtractorConfig{}, nil, nil, log)
	assembler := parser.NewAssembler(pages, parser.AssemblerConfig{}, log).WithOpener(open)
	return pipeline.NewIngester(assembler, chunker.DefaultConfig(), log)
}

func writePDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.7"), 0o644))
	}
}

type line struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func decodeLines(t *testing.T, out string) []line {
	t.Helper()
	var lines []line
	for _, raw := range strings.Split(strings.TrimSpace(out), "\n") {
		var l line
		require.NoError(t, json.Unmarshal([]byte(raw), &l))
		lines = append(lines, l)
	}
	return lines
}

func TestIngestFolderWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "invoice.pdf", "contract.pdf", "scan.pdf")

	var out bytes.Buffer
	err := ingest(context.Background(), testIngester(), indexer.NewJSONLWriter(&out),
		ingestOptions{Dir: dir}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	lines := decodeLines(t, out.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "contract.pdf", lines[0].Metadata["source"])
	assert.Equal(t, "invoice.pdf", lines[1].Metadata["source"])
	assert.True(t, strings.HasPrefix(lines[0].Content, "\nPage 1:\n"))
}

func TestIngestZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "bundle.zip")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"contract.pdf", "notes.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		w.Write([]byte("%PDF-1.7"))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o644))

	dest := filepath.Join(t.TempDir(), "expanded")
	var out bytes.Buffer
	err := ingest(context.Background(), testIngester(), indexer.NewJSONLWriter(&out),
		ingestOptions{Zip: zipPath, ExtractTo: dest}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Len(t, decodeLines(t, out.String()), 1)
	assert.FileExists(t, filepath.Join(dest, "contract.pdf"))
}

func TestIngestNoDocuments(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "scan.pdf")

	var out bytes.Buffer
	err := ingest(context.Background(), testIngester(), indexer.NewJSONLWriter(&out),
		ingestOptions{Dir: dir}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, pipeline.ErrNoDocuments)
	assert.Empty(t, out.String())
}

func TestIngestMissingDirReturnsError(t *testing.T) {
	var out bytes.Buffer
	err := ingest(context.Background(), testIngester(), indexer.NewJSONLWriter(&out),
		ingestOptions{Dir: filepath.Join(t.TempDir(), "nope")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrNoDocuments)
	assert.Empty(t, out.String())
}

func TestIngestRequiresSource(t *testing.T) {
	err := ingest(context.Background(), testIngester(), indexer.NewJSONLWriter(io.Discard),
		ingestOptions{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
