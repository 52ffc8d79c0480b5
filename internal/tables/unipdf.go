package tables

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// UnipdfDetector finds tables with unipdf's text-table extraction. It parses
// each file itself and keeps the reader open until Release is called for
// that path, so the pages of one document pay for the parse once.
type UnipdfDetector struct {
	mu   sync.Mutex
	docs map[string]*unipdfDoc
}

type unipdfDoc struct {
	mu     sync.Mutex
	file   *os.File
	reader *model.PdfReader
}

func NewUnipdfDetector() *UnipdfDetector {
	return &UnipdfDetector{docs: make(map[string]*unipdfDoc)}
}

func (d *UnipdfDetector) Name() string {
	return "unipdf"
}

// Detect extracts the tables unipdf finds on a zero-based page.
func (d *UnipdfDetector) Detect(src Source, pageIndex int) ([]Table, error) {
	doc, err := d.document(src.Path())
	if err != nil {
		return nil, err
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()

	page, err := doc.reader.GetPage(pageIndex + 1)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", pageIndex+1, err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return nil, fmt.Errorf("page %d extractor: %w", pageIndex+1, err)
	}
	pt, _, _, err := ex.ExtractPageText()
	if err != nil {
		return nil, fmt.Errorf("page %d text: %w", pageIndex+1, err)
	}

	var out []Table
	for _, tt := range pt.Tables() {
		rows := make([][]string, 0, tt.H)
		for _, cells := range tt.Cells {
			row := make([]string, len(cells))
			for x, c := range cells {
				row[x] = strings.Join(strings.Fields(c.Text), " ")
			}
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			out = append(out, Table{Rows: rows})
		}
	}
	return out, nil
}

// Release closes the reader cached for path, if any.
func (d *UnipdfDetector) Release(path string) error {
	d.mu.Lock()
	doc, ok := d.docs[path]
	delete(d.docs, path)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	return doc.file.Close()
}

// Close releases every cached reader.
func (d *UnipdfDetector) Close() error {
	d.mu.Lock()
	paths := make([]string, 0, len(d.docs))
	for path := range d.docs {
		paths = append(paths, path)
	}
	d.mu.Unlock()

	var first error
	for _, path := range paths {
		if err := d.Release(path); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Cached returns the number of files currently held open.
func (d *UnipdfDetector) Cached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.docs)
}

func (d *UnipdfDetector) document(path string) (*unipdfDoc, error) {
	d.mu.Lock()
	doc, ok := d.docs[path]
	d.mu.Unlock()
	if ok {
		return doc, nil
	}

	opened, err := openUnipdf(path)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if doc, ok := d.docs[path]; ok {
		opened.file.Close()
		return doc, nil
	}
	d.docs[path] = opened
	return opened, nil
}

func openUnipdf(path string) (*unipdfDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	reader, err := model.NewPdfReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("check encryption: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			f.Close()
			return nil, fmt.Errorf("pdf is encrypted")
		}
	}
	return &unipdfDoc{file: f, reader: reader}, nil
}
