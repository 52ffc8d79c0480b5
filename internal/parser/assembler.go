package parser

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pdfingest/internal/document"
	"github.com/dgallion1/pdfingest/internal/metrics"
)

// AssemblerConfig controls folder traversal.
type AssemblerConfig struct {
	// Workers > 1 assembles files concurrently. Output order is unchanged.
	Workers int

	// Recursive descends into subdirectories.
	Recursive bool
}

// FileFailure records a file that could not be assembled.
type FileFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Batch is the result of assembling a folder.
type Batch struct {
	Documents []document.Document
	Skipped   []string
	Failures  []FileFailure
}

// Assembler turns PDF files into numbered-page documents.
type Assembler struct {
	pages *PageExtractor
	cfg   AssemblerConfig
	open  Opener
	log   *slog.Logger
}

func NewAssembler(pages *PageExtractor, cfg AssemblerConfig, log *slog.Logger) *Assembler {
	return &Assembler{pages: pages, cfg: cfg, open: openPageReader, log: log}
}

// WithOpener replaces the PDF backend.
func (a *Assembler) WithOpener(open Opener) *Assembler {
	a.open = open
	return a
}

// AssembleFile extracts every page of one PDF. The document's Source is
// the file's base name.
func (a *Assembler) AssembleFile(ctx context.Context, path string) (document.Document, error) {
	return a.assemble(ctx, path, filepath.Base(path))
}

func (a *Assembler) assemble(ctx context.Context, path, source string) (doc document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = document.Document{}, fmt.Errorf("panic: %v", r)
		}
	}()

	pdf, err := a.open(path)
	if err != nil {
		return document.Document{}, err
	}
	defer func() {
		pdf.Close()
		a.pages.Release(pdf.Path())
	}()

	n := pdf.NumPages()
	var b strings.Builder
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return document.Document{}, err
		}
		text, err := a.pages.Extract(ctx, pdf, i)
		if err != nil {
			return document.Document{}, fmt.Errorf("page %d: %w", i+1, err)
		}
		b.WriteString("\nPage ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\n")
		b.WriteString(text)
	}

	return document.Document{Text: b.String(), Source: source, Pages: n}, nil
}

type fileResult struct {
	doc document.Document
	err error
}

// AssembleFolder assembles every .pdf file under dir in lexical order.
// Per-file failures are logged and recorded in the batch. Only an
// unreadable dir or a cancelled context returns an error.
func (a *Assembler) AssembleFolder(ctx context.Context, dir string) (*Batch, error) {
	sources, err := ListPDFs(dir, a.cfg.Recursive)
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(sources))
	run := func(i int) {
		path := filepath.Join(dir, filepath.FromSlash(sources[i]))
		results[i].doc, results[i].err = a.assemble(ctx, path, sources[i])
	}

	if a.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.Workers)
		for i := range sources {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					results[i].err = err
					return err
				}
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range sources {
			if ctx.Err() != nil {
				results[i].err = ctx.Err()
				continue
			}
			run(i)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{}
	for i, res := range results {
		source := sources[i]
		switch {
		case res.err != nil:
			a.log.Error("error processing file", "file", source, "error", res.err)
			batch.Failures = append(batch.Failures, FileFailure{Source: source, Error: res.err.Error()})
			metrics.FilesTotal.WithLabelValues("failed").Inc()
		case strings.TrimSpace(res.doc.Text) == "":
			a.log.Warn("skipping empty file", "file", source)
			batch.Skipped = append(batch.Skipped, source)
			metrics.FilesTotal.WithLabelValues("skipped").Inc()
		default:
			a.log.Info("processed file", "file", source, "pages", res.doc.Pages)
			batch.Documents = append(batch.Documents, res.doc)
			metrics.FilesTotal.WithLabelValues("assembled").Inc()
		}
	}
	return batch, nil
}

// ListPDFs returns the slash-separated paths, relative to dir, of the
// regular files whose extension is .pdf in any letter case. The result is
// sorted lexically.
func ListPDFs(dir string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsPDF(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pdfs: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// IsPDF reports whether name has a .pdf extension in any letter case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
