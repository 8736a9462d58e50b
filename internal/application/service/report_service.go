package service

import (
	"context"
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
)

// ReportService renders downloadable artefacts for completed sessions
type ReportService interface {
	Workbook(ctx context.Context, sessionID string) ([]byte, error)
	LetterPDF(ctx context.Context, sessionID string) ([]byte, error)
}

type reportServiceImpl struct {
	coordinator AuditCoordinator
	exporter    port.ReportExporter
	renderer    port.LetterRenderer
	logger      Logger
}

// NewReportService creates a new ReportService. Both artefacts follow Result
// semantics, so unfinished or failed sessions yield the same errors.
func NewReportService(
	coordinator AuditCoordinator,
	exporter port.ReportExporter,
	renderer port.LetterRenderer,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		coordinator: coordinator,
		exporter:    exporter,
		renderer:    renderer,
		logger:      logger,
	}
}

func (s *reportServiceImpl) Workbook(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.coordinator.Result(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data, err := s.exporter.ExportWorkbook(session)
	if err != nil {
		s.logger.Error("Failed to export workbook", "error", err, "audit_id", sessionID)
		return nil, fmt.Errorf("export workbook: %w", err)
	}
	return data, nil
}

func (s *reportServiceImpl) LetterPDF(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.coordinator.Result(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.RenderLetter(session)
	if err != nil {
		s.logger.Error("Failed to render letter", "error", err, "audit_id", sessionID)
		return nil, fmt.Errorf("render letter: %w", err)
	}
	return data, nil
}
