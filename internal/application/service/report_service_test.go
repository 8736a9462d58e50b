package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

type mockExporter struct {
	exportWorkbookFunc func(session *entity.AuditSession) ([]byte, error)
}

func (m *mockExporter) ExportWorkbook(session *entity.AuditSession) ([]byte, error) {
	if m.exportWorkbookFunc != nil {
		return m.exportWorkbookFunc(session)
	}
	return []byte("xlsx:" + session.ID), nil
}

type mockRenderer struct{}

func (mockRenderer) RenderLetter(session *entity.AuditSession) ([]byte, error) {
	return []byte("%PDF " + session.ID), nil
}

func TestReportService(t *testing.T) {
	f := newFixture(t, &syncPool{})
	ctx := context.Background()
	exporter := &mockExporter{}
	svc := NewReportService(f.coordinator, exporter, mockRenderer{}, nopLogger{})

	pending, err := f.coordinator.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Workbook(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrResultNotReady)

	id := f.readySession(t)
	_, err = f.coordinator.Complete(ctx, id)
	require.NoError(t, err)

	data, err := svc.Workbook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "xlsx:"+id, string(data))

	pdf, err := svc.LetterPDF(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "%PDF "+id, string(pdf))

	exporter.exportWorkbookFunc = func(*entity.AuditSession) ([]byte, error) {
		return nil, errors.New("sheet error")
	}
	_, err = svc.Workbook(ctx, id)
	assert.Error(t, err)
}
