package tables

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfingest/internal/document"
	"github.com/dgallion1/pdfingest/internal/metrics"
)

// FormatRows renders every data row of t as "Row N | header: cell | ...".
// The first row is the header. Empty cells are omitted, as are cells with no
// header column. page and tableIdx are 1-based.
func FormatRows(page, tableIdx int, t Table) []document.TableRow {
	if len(t.Rows) == 0 {
		return nil
	}
	headers := t.Rows[0]

	rows := make([]document.TableRow, 0, len(t.Rows)-1)
	for i, row := range t.Rows[1:] {
		n := i + 1
		pairs := make([]string, 0, len(row))
		for k, cell := range row {
			if k >= len(headers) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			pairs = append(pairs, headerLabel(headers[k], k)+": "+cell)
		}
		rows = append(rows, document.TableRow{
			Page:  page,
			Table: tableIdx,
			Row:   n,
			Text:  "Row " + strconv.Itoa(n) + " | " + strings.Join(pairs, " | "),
		})
	}
	return rows
}

func headerLabel(h string, k int) string {
	if h = strings.TrimSpace(h); h != "" {
		return h
	}
	return "Column " + strconv.Itoa(k+1)
}

// RowExtractor turns the tables on a page into TableRows. A nil detector
// disables table extraction.
type RowExtractor struct {
	detector Detector
	log      *slog.Logger
}

func NewRowExtractor(detector Detector, log *slog.Logger) *RowExtractor {
	return &RowExtractor{detector: detector, log: log}
}

// Extract returns the table rows of a zero-based page. Detection errors and
// panics are logged and yield no rows.
func (e *RowExtractor) Extract(src Source, pageIndex int) (rows []document.TableRow) {
	if e == nil || e.detector == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.fail(src, pageIndex, fmt.Errorf("panic: %v", r))
			rows = nil
		}
	}()

	tables, err := e.detector.Detect(src, pageIndex)
	if err != nil {
		e.fail(src, pageIndex, err)
		return nil
	}

	for t, table := range tables {
		rows = append(rows, FormatRows(pageIndex+1, t+1, table)...)
	}
	metrics.TableRowsTotal.Add(float64(len(rows)))
	return rows
}

// Release drops any per-file state the detector keeps for path.
func (e *RowExtractor) Release(path string) {
	if e == nil {
		return
	}
	r, ok := e.detector.(Releaser)
	if !ok {
		return
	}
	if err := r.Release(path); err != nil {
		e.log.Warn("release table detector", "path", path, "detector", e.detector.Name(), "error", err)
	}
}

func (e *RowExtractor) fail(src Source, pageIndex int, err error) {
	metrics.TableFailuresTotal.Inc()
	e.log.Error("table extraction failed",
		"path", src.Path(),
		"page", pageIndex+1,
		"detector", e.detector.Name(),
		"error", err,
	)
}
