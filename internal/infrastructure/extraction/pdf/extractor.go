// Package pdf extracts raw text from uploaded PDF documents with MuPDF
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

const collaboratorName = "pdf-extractor"

// PageOCR reads text from rendered page images. It is used for scanned PDFs
// that carry no text layer.
type PageOCR interface {
	RecognizePages(ctx context.Context, pages [][]byte) (string, error)
}

// Config holds extractor limits
type Config struct {
	// MaxPages caps how many pages are read; 0 reads all pages
	MaxPages int
	// OCRMaxPages caps how many pages are rendered for OCR
	OCRMaxPages int
}

// Extractor implements port.DocumentExtractor
type Extractor struct {
	storage port.FileStorage
	ocr     PageOCR
	config  Config
	logger  *zap.Logger
}

// Option configures the extractor
type Option func(*Extractor)

// WithOCR enables OCR for pages without a text layer
func WithOCR(ocr PageOCR) Option {
	return func(e *Extractor) {
		e.ocr = ocr
	}
}

// NewExtractor creates a new PDF text extractor
func NewExtractor(storage port.FileStorage, config Config, logger *zap.Logger, opts ...Option) *Extractor {
	if config.OCRMaxPages <= 0 {
		config.OCRMaxPages = 4
	}
	e := &Extractor{
		storage: storage,
		config:  config,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText returns the document's text. An empty string means the document
// has no readable text, which is not an error.
func (e *Extractor) ExtractText(ctx context.Context, ref *entity.DocumentRef) (string, error) {
	if ref == nil {
		return "", permanent("read", fmt.Errorf("no document reference"))
	}

	data, err := e.storage.Read(ctx, ref.Path)
	if err != nil {
		return "", permanent("read", err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		e.logger.Warn("Failed to open PDF", zap.String("path", ref.Path), zap.Error(err))
		return "", permanent("open", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if e.config.MaxPages > 0 && pages > e.config.MaxPages {
		pages = e.config.MaxPages
	}

	var sb strings.Builder
	for n := 0; n < pages; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(n)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				zap.String("path", ref.Path),
				zap.Int("page", n),
				zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	if sb.Len() > 0 || e.ocr == nil || pages == 0 {
		e.logger.Debug("Extracted PDF text",
			zap.String("path", ref.Path),
			zap.Int("pages", pages),
			zap.Int("chars", sb.Len()))
		return sb.String(), nil
	}

	return e.recognize(ctx, doc, pages, ref.Path)
}

// recognize renders pages to JPEG and hands them to OCR
func (e *Extractor) recognize(ctx context.Context, doc *fitz.Document, pages int, path string) (string, error) {
	if pages > e.config.OCRMaxPages {
		pages = e.config.OCRMaxPages
	}

	images := make([][]byte, 0, pages)
	for n := 0; n < pages; n++ {
		img, err := doc.Image(n)
		if err != nil {
			e.logger.Warn("Failed to render page", zap.String("path", path), zap.Int("page", n), zap.Error(err))
			continue
		}
		data, err := encodeJPEG(img)
		if err != nil {
			return "", permanent("render", err)
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return "", nil
	}

	e.logger.Info("No text layer, running OCR", zap.String("path", path), zap.Int("pages", len(images)))
	text, err := e.ocr.RecognizePages(ctx, images)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func permanent(op string, err error) error {
	return &entity.CollaboratorError{Collaborator: collaboratorName, Op: op, Err: err}
}

var _ port.DocumentExtractor = (*Extractor)(nil)
