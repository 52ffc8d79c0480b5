package tables

import (
	"math"
	"sort"
	"strings"
)

// GeometricDetector implements table detection using geometric heuristics.
// Glyphs are merged into cells by horizontal proximity, cells are grouped
// into rows by baseline, and runs of consecutive multi-cell rows become
// tables whose columns are the merged horizontal extents of their cells.
type GeometricDetector struct {
	config Config
}

// NewGeometricDetector creates a geometric detector. Zero fields fall back to DefaultConfig.
func NewGeometricDetector(cfg Config) *GeometricDetector {
	def := DefaultConfig()
	if cfg.MinRows <= 0 {
		cfg.MinRows = def.MinRows
	}
	if cfg.MinCols <= 0 {
		cfg.MinCols = def.MinCols
	}
	if cfg.MaxCellGap <= 0 {
		cfg.MaxCellGap = def.MaxCellGap
	}
	if cfg.AlignmentTolerance <= 0 {
		cfg.AlignmentTolerance = def.AlignmentTolerance
	}
	if cfg.MaxRowGap <= 0 {
		cfg.MaxRowGap = def.MaxRowGap
	}
	return &GeometricDetector{config: cfg}
}

// Name returns the detector's identifier ("geometric").
func (d *GeometricDetector) Name() string {
	return "geometric"
}

// Detect finds tables on a page, top to bottom.
func (d *GeometricDetector) Detect(src Source, pageIndex int) ([]Table, error) {
	frags, err := src.PageFragments(pageIndex)
	if err != nil {
		return nil, err
	}
	return d.DetectFragments(frags), nil
}

// DetectFragments runs detection over already-extracted fragments.
func (d *GeometricDetector) DetectFragments(frags []Fragment) []Table {
	var tables []Table
	for _, region := range d.regions(d.buildLines(frags)) {
		if t, ok := d.buildTable(region); ok {
			tables = append(tables, t)
		}
	}
	return tables
}

// textLine is a set of cells sharing a baseline.
type textLine struct {
	y     float64
	cells []Fragment
}

// buildLines groups fragments into baselines (top to bottom) and merges
// each baseline's glyphs into cells.
func (d *GeometricDetector) buildLines(frags []Fragment) []textLine {
	sorted := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if f.Text != "" {
			sorted = append(sorted, f)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var lines []textLine
	flush := func(y float64, glyphs []Fragment) {
		if cells := d.mergeCells(glyphs); len(cells) > 0 {
			lines = append(lines, textLine{y: y, cells: cells})
		}
	}

	lineY := sorted[0].Y
	var current []Fragment
	for _, f := range sorted {
		if len(current) > 0 && lineY-f.Y > d.config.AlignmentTolerance {
			flush(lineY, current)
			current = nil
			lineY = f.Y
		}
		current = append(current, f)
	}
	flush(lineY, current)
	return lines
}

// mergeCells joins horizontally adjacent glyphs on one baseline into cells.
func (d *GeometricDetector) mergeCells(glyphs []Fragment) []Fragment {
	sort.SliceStable(glyphs, func(i, j int) bool {
		return glyphs[i].X < glyphs[j].X
	})

	var cells []Fragment
	for _, g := range glyphs {
		if n := len(cells); n > 0 {
			last := &cells[n-1]
			gap := g.X - (last.X + last.W)
			if gap <= d.config.MaxCellGap {
				if gap > wordGap(g) && !strings.HasSuffix(last.Text, " ") && !strings.HasPrefix(g.Text, " ") {
					last.Text += " "
				}
				last.Text += g.Text
				if right := g.X + g.W; right > last.X+last.W {
					last.W = right - last.X
				}
				continue
			}
		}
		cells = append(cells, g)
	}

	out := cells[:0]
	for _, c := range cells {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text != "" {
			out = append(out, c)
		}
	}
	return out
}

// wordGap is the horizontal distance above which two glyphs read as separate words.
func wordGap(f Fragment) float64 {
	size := f.FontSize
	if size <= 0 {
		size = 10
	}
	return 0.15 * size
}

// regions splits lines into runs of consecutive multi-cell lines.
func (d *GeometricDetector) regions(lines []textLine) [][]textLine {
	var out [][]textLine
	var current []textLine
	flush := func() {
		if len(current) >= d.config.MinRows {
			out = append(out, current)
		}
		current = nil
	}

	for _, ln := range lines {
		if len(ln.cells) < d.config.MinCols {
			flush()
			continue
		}
		if n := len(current); n > 0 && current[n-1].y-ln.y > d.config.MaxRowGap {
			flush()
		}
		current = append(current, ln)
	}
	flush()
	return out
}

type span struct {
	left, right float64
}

// columns merges the horizontal extents of all cells in a region.
func (d *GeometricDetector) columns(region []textLine) []span {
	var spans []span
	for _, ln := range region {
		for _, c := range ln.cells {
			spans = append(spans, span{left: c.X, right: c.X + c.W})
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].left < spans[j].left
	})

	var cols []span
	for _, s := range spans {
		if n := len(cols); n > 0 && s.left <= cols[n-1].right+d.config.AlignmentTolerance {
			if s.right > cols[n-1].right {
				cols[n-1].right = s.right
			}
			continue
		}
		cols = append(cols, s)
	}
	return cols
}

func (d *GeometricDetector) buildTable(region []textLine) (Table, bool) {
	cols := d.columns(region)
	if len(cols) < d.config.MinCols {
		return Table{}, false
	}

	rows := make([][]string, len(region))
	filled := 0
	for i, ln := range region {
		row := make([]string, len(cols))
		for _, c := range ln.cells {
			j := columnOf(cols, c.X+c.W/2)
			if row[j] == "" {
				row[j] = c.Text
				filled++
			} else {
				row[j] += " " + c.Text
			}
		}
		rows[i] = row
	}

	if float64(filled)/float64(len(rows)*len(cols)) < d.config.MinConfidence {
		return Table{}, false
	}
	return Table{Rows: rows}, true
}

// columnOf returns the column containing x, or the nearest one.
func columnOf(cols []span, x float64) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range cols {
		if x >= c.left && x <= c.right {
			return j
		}
		if dist := math.Min(math.Abs(x-c.left), math.Abs(x-c.right)); dist < bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}
