// Package extract turns files on disk into plain text.
//
// Dispatch is closed over Kind: plain text and Markdown are read as UTF-8,
// PDFs go through ledongthuc/pdf, and scanned PDFs are handed to an external
// OCR command (ocrmypdf by default) whose sidecar text output is read back.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyTextLayer is returned for a PDF with no extractable text when OCR
// fallback is disabled.
var ErrEmptyTextLayer = errors.New("pdf has no text layer")

// Extractor reads text from supported files.
type Extractor struct {
	ocr     config.OCRConfig
	runner  CommandRunner
	logger  *zap.Logger
	readPDF func(path string) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner used for OCR.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(cfg config.ExtractConfig, opts ...Option) *Extractor {
	e := &Extractor{
		ocr:     cfg.OCR,
		runner:  ExecRunner{},
		logger:  zap.NewNop(),
		readPDF: readPDFText,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ocr.Command == "" {
		e.ocr.Command = "ocrmypdf"
	}
	return e
}

// Extract returns the text content of path. Unsupported files give
// errs.ErrUnsupportedFileType; every other failure wraps errs.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	kind := KindFor(path)
	if kind == KindUnknown {
		return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedFileType, filepath.Ext(path))
	}

	var (
		text string
		err  error
	)
	switch kind {
	case KindText, KindMarkdown:
		text, err = readUTF8(path)
	case KindPDF:
		text, err = e.extractPDF(ctx, path)
	case KindOCRPDF:
		text, err = e.extractOCR(ctx, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s (%s): %w", errs.ErrExtraction, path, kind, err)
	}
	return text, nil
}

func readUTF8(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	text, err := e.readPDF(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if !e.ocr.Enabled {
		return "", ErrEmptyTextLayer
	}
	e.logger.Debug("pdf text layer empty, falling back to ocr", zap.String("path", path))
	return e.extractOCR(ctx, path)
}

// readPDFText reads the plain text layer. The pdf package panics on some
// malformed inputs, so panics are turned into errors.
func readPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractOCR runs the OCR command with a sidecar text file and reads it back.
func (e *Extractor) extractOCR(ctx context.Context, path string) (string, error) {
	if timeout := e.ocr.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "docrag-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	sidecar := filepath.Join(dir, "text.txt")
	output := filepath.Join(dir, "out.pdf")

	start := time.Now()
	out, err := e.runner.Run(ctx, e.ocr.Command, "--force-ocr", "--sidecar", sidecar, path, output)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", e.ocr.Command, err, strings.TrimSpace(string(out)))
	}
	e.logger.Debug("ocr finished",
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)

	return readUTF8(sidecar)
}
