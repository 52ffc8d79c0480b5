//go:build !ocr

// Package ocr recognises text in rendered page images with Tesseract.
//
// This is the stub built without the "ocr" tag. Every call returns
// ErrOCRNotEnabled. Rebuild with:
//
//	go build -tags ocr
package ocr

import "errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

type Client struct{}

func New() (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is safe to call on a nil client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

func (c *Client) SetLanguage(lang string) error {
	return ErrOCRNotEnabled
}
