package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/pdfingest/internal/metrics"
)

// Renderer produces an encoded image of one zero-based page.
type Renderer interface {
	RenderPNG(path string, pageIndex int) ([]byte, error)
}

// Engine is the subset of Client used by PageRecognizer.
type Engine interface {
	RecognizeImage(imageData []byte) (string, error)
	SetLanguage(lang string) error
	Close() error
}

// PageRecognizer renders a page and runs OCR on it. Each call uses a fresh
// engine, so concurrent calls are safe.
type PageRecognizer struct {
	renderer  Renderer
	language  string
	stats     *metrics.LatencyStats
	newEngine func() (Engine, error)
}

func NewPageRecognizer(renderer Renderer, language string, stats *metrics.LatencyStats) *PageRecognizer {
	if stats == nil {
		stats = metrics.NewLatencyStats(time.Hour)
	}
	return &PageRecognizer{
		renderer: renderer,
		language: language,
		stats:    stats,
		newEngine: func() (Engine, error) {
			c, err := New()
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Stats returns the rolling latency of Recognize calls.
func (r *PageRecognizer) Stats() *metrics.LatencyStats {
	return r.stats
}

// Recognize returns the OCR transcript of a zero-based page.
func (r *PageRecognizer) Recognize(ctx context.Context, path string, pageIndex int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	text, err := r.recognize(path, pageIndex)
	elapsed := time.Since(start)
	r.stats.Observe(elapsed)
	metrics.OCRDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.OCRFailuresTotal.Inc()
		return "", fmt.Errorf("ocr page %d: %w", pageIndex+1, err)
	}
	return text, nil
}

func (r *PageRecognizer) recognize(path string, pageIndex int) (string, error) {
	img, err := r.renderer.RenderPNG(path, pageIndex)
	if err != nil {
		return "", err
	}

	engine, err := r.newEngine()
	if err != nil {
		return "", err
	}
	defer engine.Close()

	if r.language != "" {
		if err := engine.SetLanguage(r.language); err != nil {
			return "", fmt.Errorf("set language %q: %w", r.language, err)
		}
	}
	return engine.RecognizeImage(img)
}
