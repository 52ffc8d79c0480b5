// Package raster renders PDF pages to grayscale PNG images for OCR.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
)

// Renderer rasterises single pages with MuPDF.
type Renderer struct {
	DPI       float64
	MaxPixels int
}

func NewRenderer(dpi float64, maxPixels int) *Renderer {
	if dpi <= 0 {
		dpi = 300
	}
	return &Renderer{DPI: dpi, MaxPixels: maxPixels}
}

// RenderPNG renders a zero-based page of the PDF at path.
func (r *Renderer) RenderPNG(path string, pageIndex int) ([]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if pageIndex < 0 || pageIndex >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (%d pages)", pageIndex+1, doc.NumPage())
	}

	img, err := doc.ImageDPI(pageIndex, r.DPI)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageIndex+1, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Prepare(img, r.MaxPixels)); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", pageIndex+1, err)
	}
	return buf.Bytes(), nil
}

// Prepare converts src to grayscale, scaling it down so that it holds at most
// maxPixels pixels. maxPixels <= 0 disables scaling.
func Prepare(src image.Image, maxPixels int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxPixels > 0 && w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
