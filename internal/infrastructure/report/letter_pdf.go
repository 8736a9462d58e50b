package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

const (
	fontFamily = "LetterFont"
	fontSize   = 11
	lineHeight = 15
	margin     = 56
	pageHeight = 842
	textWidth  = 595 - 2*margin
)

// DefaultFontPaths are tried in order when no font is configured
var DefaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
}

// LetterRenderer implements port.LetterRenderer with gopdf
type LetterRenderer struct {
	fontPaths []string
	logger    *zap.Logger
}

// NewLetterRenderer creates a renderer that loads the first readable TTF font
// from fontPaths, falling back to DefaultFontPaths when none are given
func NewLetterRenderer(fontPaths []string, logger *zap.Logger) *LetterRenderer {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &LetterRenderer{fontPaths: fontPaths, logger: logger}
}

// RenderLetter lays the session's dispute letter out on A4 pages
func (r *LetterRenderer) RenderLetter(session *entity.AuditSession) ([]byte, error) {
	if session == nil || session.DisputeLetter == "" {
		return nil, fmt.Errorf("session has no dispute letter")
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(margin, margin, margin, margin)

	if err := r.loadFont(pdf); err != nil {
		return nil, err
	}

	pdf.AddPage()
	if err := pdf.SetFont(fontFamily, "", fontSize); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	pages := 1
	for _, paragraph := range strings.Split(session.DisputeLetter, "\n") {
		lines := []string{""}
		if strings.TrimSpace(paragraph) != "" {
			split, err := pdf.SplitText(paragraph, textWidth)
			if err != nil {
				return nil, fmt.Errorf("failed to wrap text: %w", err)
			}
			lines = split
		}

		for _, line := range lines {
			if pdf.GetY()+lineHeight > pageHeight-margin {
				pdf.AddPage()
				pages++
			}
			pdf.SetX(margin)
			if line != "" {
				if err := pdf.Cell(nil, line); err != nil {
					return nil, fmt.Errorf("failed to write line: %w", err)
				}
			}
			pdf.Br(lineHeight)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Info("Dispute letter rendered",
		zap.String("audit_id", session.ID),
		zap.Int("pages", pages),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func (r *LetterRenderer) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		r.logger.Debug("Loaded letter font", zap.String("path", path))
		return nil
	}
	return fmt.Errorf("failed to load a font for the letter PDF: %w", lastErr)
}

var _ port.LetterRenderer = (*LetterRenderer)(nil)
