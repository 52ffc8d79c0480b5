// Package app assembles the extraction chain from configuration. Both the
// HTTP server and the CLI build their ingester here.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/unidoc/unipdf/v3/common/license"

	"github.com/dgallion1/pdfingest/internal/config"
	"github.com/dgallion1/pdfingest/internal/metrics"
	"github.com/dgallion1/pdfingest/internal/ocr"
	"github.com/dgallion1/pdfingest/internal/parser"
	"github.com/dgallion1/pdfingest/internal/pipeline"
	"github.com/dgallion1/pdfingest/internal/raster"
	"github.com/dgallion1/pdfingest/internal/tables"
)

// Components is the wired extraction chain.
type Components struct {
	Ingester *pipeline.Ingester

	// OCRStats is nil when OCR is unavailable in this build.
	OCRStats *metrics.LatencyStats

	closers []io.Closer
}

// Build wires tables, OCR and the assembler according to cfg.
func Build(cfg config.Config, log *slog.Logger) (*Components, error) {
	c := &Components{}

	if cfg.UnidocLicenseKey != "" {
		if err := license.SetMeteredKey(cfg.UnidocLicenseKey); err != nil {
			return nil, fmt.Errorf("unidoc license: %w", err)
		}
	}

	detector, err := tables.New(cfg.TableBackend)
	if err != nil {
		return nil, err
	}
	if closer, ok := detector.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}
	rows := tables.NewRowExtractor(detector, log)

	var recognizer parser.Recognizer
	if engine, err := ocr.New(); err != nil {
		minChars := cfg.OCRMinTextChars
		if minChars <= 0 {
			minChars = parser.DefaultMinTextChars
		}
		log.Warn(fmt.Sprintf("ocr unavailable: pages under %d chars will not be OCRed", minChars),
			"error", err,
		)
	} else {
		engine.Close()
		c.OCRStats = metrics.NewLatencyStats(time.Hour)
		renderer := raster.NewRenderer(cfg.OCRDPI, cfg.OCRMaxPixels)
		recognizer = ocr.NewPageRecognizer(renderer, cfg.OCRLanguage, c.OCRStats)
	}

	pages := parser.NewPageExtractor(cfg.Extractor(), recognizer, rows, log)
	assembler := parser.NewAssembler(pages, cfg.Assembler(), log)
	c.Ingester = pipeline.NewIngester(assembler, cfg.Chunker(), log)

	log.Info("extraction chain ready",
		"tables", cfg.TableBackend,
		"ocr", recognizer != nil,
		"chunk_size", cfg.ChunkSize,
		"chunk_overlap", cfg.ChunkOverlap,
	)
	return c, nil
}

// Close releases detector resources.
func (c *Components) Close() error {
	var first error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
