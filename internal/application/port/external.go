package port

import (
	"context"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// DocumentExtractor turns a stored document into raw text. An empty string
// with a nil error means the document holds no readable text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, ref *entity.DocumentRef) (string, error)
}

// FieldStructurer turns raw text into structured bill or policy data.
// Optional fields may be left empty.
type FieldStructurer interface {
	StructureBill(ctx context.Context, text string) (*entity.Bill, error)
	StructurePolicy(ctx context.Context, text string) (*entity.PolicyTerms, error)
}

// SessionNotifier announces finished sessions to operators
type SessionNotifier interface {
	NotifySessionFinished(ctx context.Context, session *entity.AuditSession) error
}

// ReportExporter renders a completed session as a spreadsheet
type ReportExporter interface {
	ExportWorkbook(session *entity.AuditSession) ([]byte, error)
}

// LetterRenderer renders a completed session's dispute letter as a PDF
type LetterRenderer interface {
	RenderLetter(session *entity.AuditSession) ([]byte, error)
}
