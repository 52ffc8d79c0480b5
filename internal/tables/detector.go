// Package tables finds tables on PDF pages and renders their data rows as
// "header: cell" text lines.
//
// Detection is pluggable through [Detector]. [GeometricDetector] works on
// positioned text from the page content stream. [UnipdfDetector] delegates
// to unipdf's table extractor.
package tables

// Fragment is a positioned piece of text on a page, in PDF user space
// (origin bottom-left, Y grows upward).
type Fragment struct {
	X, Y     float64
	W        float64
	FontSize float64
	Text     string
}

// Source gives detectors access to one opened PDF.
type Source interface {
	// Path is the file on disk, for detectors that parse it themselves.
	Path() string
	// PageFragments returns the positioned text of a zero-based page.
	PageFragments(pageIndex int) ([]Fragment, error)
}

// Table is a detected table. Rows[0] is the header row. Missing cells are "".
type Table struct {
	Rows [][]string
}

// Detector finds tables on one page.
type Detector interface {
	Detect(src Source, pageIndex int) ([]Table, error)
	Name() string
}

// Releaser is implemented by detectors that hold per-file state. The
// caller releases a path once it has finished with that file.
type Releaser interface {
	Release(path string) error
}

// Config holds geometric detector parameters. Distances are in points.
type Config struct {
	// Minimum rows (header included) for a valid table
	MinRows int

	// Minimum columns for a valid table
	MinCols int

	// Minimum share of filled cells (0-1)
	MinConfidence float64

	// Maximum horizontal gap between glyphs of the same cell
	MaxCellGap float64

	// Tolerance for baseline alignment within a row
	AlignmentTolerance float64

	// Maximum vertical gap between consecutive table rows
	MaxRowGap float64
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MinRows:            2,
		MinCols:            2,
		MinConfidence:      0.5,
		MaxCellGap:         5.0,
		AlignmentTolerance: 2.0,
		MaxRowGap:          50.0,
	}
}

// New returns the detector registered under name: "geometric" or "unipdf".
// "none" and "" return nil, which disables table extraction.
func New(name string) (Detector, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "geometric":
		return NewGeometricDetector(DefaultConfig()), nil
	case "unipdf":
		return NewUnipdfDetector(), nil
	default:
		return nil, &UnknownDetectorError{Name: name}
	}
}

// UnknownDetectorError reports an unsupported detector name.
type UnknownDetectorError struct {
	Name string
}

func (e *UnknownDetectorError) Error() string {
	return "unknown table detector: " + e.Name
}
