// Package ocr adapts OCR engines to ports.TextExtractor.
package ocr

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/ports"
	"fmt"
	"time"
)

type Options struct {
	Backend     string
	Bin         string
	Lang        string
	TessdataDir string
	EasyOCRURL  string
	Timeout     time.Duration
	// Preprocess enables orientation correction and binarization for tesseract.
	Preprocess  bool
}

// New returns the configured OCR backend.
func New(opts Options) (ports.TextExtractor, error) {
	switch opts.Backend {
	case "", "tesseract":
		t := NewTesseract(opts.Bin, opts.Lang, opts.TessdataDir, opts.Timeout)
		t.Preprocess = opts.Preprocess
		return t, nil
	case "easyocr":
		return NewEasyOCR(opts.EasyOCRURL, opts.Timeout), nil
	default:
		return nil, &domain.ConfigurationError{
			Key: "OCR_BACKEND",
			Msg: fmt.Sprintf("unsupported OCR backend %q", opts.Backend),
		}
	}
}
