package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G1r1shCodes/BimaBot/internal/application/service"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

const testID = "AUD-0000ABCD"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type mockCoordinator struct {
	StartFunc    func(ctx context.Context) (*entity.AuditSession, error)
	UploadFunc   func(ctx context.Context, id string, kind entity.DocumentKind, filename string, content []byte) (*service.AttachResult, error)
	CompleteFunc func(ctx context.Context, id string) (string, error)
	StatusFunc   func(ctx context.Context, id string) (*service.SessionStatus, error)
	ResultFunc   func(ctx context.Context, id string) (*entity.AuditSession, error)
	ListFunc     func(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error)
}

func (m *mockCoordinator) Start(ctx context.Context) (*entity.AuditSession, error) {
	return m.StartFunc(ctx)
}

func (m *mockCoordinator) Upload(ctx context.Context, id string, kind entity.DocumentKind, filename string, content []byte) (*service.AttachResult, error) {
	return m.UploadFunc(ctx, id, kind, filename, content)
}

func (m *mockCoordinator) AttachDocument(context.Context, string, entity.DocumentKind, *entity.DocumentRef) (*service.AttachResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockCoordinator) Complete(ctx context.Context, id string) (string, error) {
	return m.CompleteFunc(ctx, id)
}

func (m *mockCoordinator) Status(ctx context.Context, id string) (*service.SessionStatus, error) {
	return m.StatusFunc(ctx, id)
}

func (m *mockCoordinator) Result(ctx context.Context, id string) (*entity.AuditSession, error) {
	return m.ResultFunc(ctx, id)
}

func (m *mockCoordinator) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	return m.ListFunc(ctx, limit, offset)
}

func (m *mockCoordinator) RecoverInterrupted(context.Context) (int, error) {
	return 0, nil
}

type mockReports struct {
	WorkbookFunc  func(ctx context.Context, id string) ([]byte, error)
	LetterPDFFunc func(ctx context.Context, id string) ([]byte, error)
}

func (m *mockReports) Workbook(ctx context.Context, id string) ([]byte, error) {
	return m.WorkbookFunc(ctx, id)
}

func (m *mockReports) LetterPDF(ctx context.Context, id string) ([]byte, error) {
	return m.LetterPDFFunc(ctx, id)
}

func newTestServer(coord *mockCoordinator, reports *mockReports) *Server {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.MaxUploadBytes = 1 << 20
	return NewServer(cfg, coord, reports, nil, nopLogger{})
}

func doRequest(s *Server, req *http.Request) (*httptest.ResponseRecorder, Response) {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for field, name := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandlers_StartSession(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := newTestServer(&mockCoordinator{
		StartFunc: func(ctx context.Context) (*entity.AuditSession, error) {
			return &entity.AuditSession{ID: testID, Status: entity.StatusCreated, CreatedAt: created}, nil
		},
	}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/audit/start", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, testID, data["audit_id"])
	assert.Equal(t, "created", data["status"])
}

func TestHandlers_UploadDocuments(t *testing.T) {
	var uploaded []entity.DocumentKind
	coord := &mockCoordinator{
		UploadFunc: func(ctx context.Context, id string, kind entity.DocumentKind, filename string, content []byte) (*service.AttachResult, error) {
			uploaded = append(uploaded, kind)
			assert.Equal(t, testID, id)
			assert.Equal(t, string(kind)+".pdf", filename)
			return &service.AttachResult{
				AuditID:        id,
				BillUploaded:   true,
				PolicyUploaded: kind == entity.DocumentPolicy,
			}, nil
		},
	}
	s := newTestServer(coord, nil)

	body, contentType := multipartBody(t, map[string]string{"bill": "bill.pdf", "policy": "policy.pdf"})
	req := httptest.NewRequest(http.MethodPost, "/api/audit/"+testID+"/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec, resp := doRequest(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []entity.DocumentKind{entity.DocumentBill, entity.DocumentPolicy}, uploaded)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["bill_uploaded"])
	assert.Equal(t, true, data["policy_uploaded"])
}

func TestHandlers_UploadDocuments_NoFiles(t *testing.T) {
	s := newTestServer(&mockCoordinator{}, nil)

	body, contentType := multipartBody(t, map[string]string{"invoice": "x.pdf"})
	req := httptest.NewRequest(http.MethodPost, "/api/audit/"+testID+"/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec, resp := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestHandlers_UploadDocuments_Rejected(t *testing.T) {
	s := newTestServer(&mockCoordinator{
		UploadFunc: func(context.Context, string, entity.DocumentKind, string, []byte) (*service.AttachResult, error) {
			return nil, &entity.ValidationError{Field: "bill", Reason: "only PDF files are accepted"}
		},
	}, nil)

	body, contentType := multipartBody(t, map[string]string{"bill": "bill.docx"})
	req := httptest.NewRequest(http.MethodPost, "/api/audit/"+testID+"/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec, resp := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "only PDF files are accepted")
}

func TestHandlers_CompleteSession(t *testing.T) {
	s := newTestServer(&mockCoordinator{
		CompleteFunc: func(ctx context.Context, id string) (string, error) {
			return entity.StatusProcessing, nil
		},
	}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/audit/"+testID+"/complete", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "processing", resp.Data.(map[string]interface{})["status"])
}

func TestHandlers_CapacityExceeded(t *testing.T) {
	s := newTestServer(&mockCoordinator{
		CompleteFunc: func(ctx context.Context, id string) (string, error) {
			return entity.StatusCreated, service.ErrCapacityExceeded
		},
	}, nil)

	rec, _ := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/audit/"+testID+"/complete", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"not found", entity.ErrSessionNotFound, http.StatusNotFound, ""},
		{"wrapped not found", errors.Join(errors.New("get session"), entity.ErrSessionNotFound), http.StatusNotFound, ""},
		{"not ready", service.ErrResultNotReady, http.StatusConflict, ""},
		{"busy", service.ErrSessionBusy, http.StatusConflict, ""},
		{"precondition", &entity.PreconditionError{Reason: "policy document missing"}, http.StatusConflict, ""},
		{"failed", &service.SessionFailedError{Kind: entity.FailureNoData, Reason: "bill document: no data found in document"}, http.StatusUnprocessableEntity, "no_data"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockCoordinator{
				ResultFunc: func(ctx context.Context, id string) (*entity.AuditSession, error) {
					return nil, tt.err
				},
			}, nil)

			rec, resp := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/audit/"+testID+"/result", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotContains(t, resp.Error, "disk on fire")
		})
	}
}

func TestHandlers_GetResult(t *testing.T) {
	completed := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	s := newTestServer(&mockCoordinator{
		ResultFunc: func(ctx context.Context, id string) (*entity.AuditSession, error) {
			return &entity.AuditSession{
				ID:            id,
				Status:        entity.StatusCompleted,
				BillDocument:  &entity.DocumentRef{Path: id + "/bill.pdf"},
				Bill:          &entity.Bill{LineItems: []entity.LineItem{{ID: "LI-001", Label: "Gloves", Amount: 300}}},
				Policy:        &entity.PolicyTerms{},
				Summary:       &entity.FinancialSummary{TotalBilled: 300, AmountUnderReview: 300},
				DisputeLetter: "To: The Claims Department",
				CompletedAt:   &completed,
			}, nil
		},
	}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/audit/"+testID+"/result", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, []interface{}{}, data["flags"])
	assert.Equal(t, "To: The Claims Department", data["dispute_letter"])
	assert.NotContains(t, rec.Body.String(), "bill.pdf")
}

func TestHandlers_GetStatus(t *testing.T) {
	s := newTestServer(&mockCoordinator{
		StatusFunc: func(ctx context.Context, id string) (*service.SessionStatus, error) {
			return &service.SessionStatus{
				AuditID:  id,
				Status:   entity.StatusProcessing,
				Progress: entity.Progress{Step: entity.StepAuditing, Current: 3, Total: 4},
			}, nil
		},
	}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/audit/"+testID+"/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	progress := resp.Data.(map[string]interface{})["progress"].(map[string]interface{})
	assert.Equal(t, float64(3), progress["current"])
}

func TestHandlers_InvalidID(t *testing.T) {
	s := newTestServer(&mockCoordinator{}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/audit/not-an-id/status", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "invalid audit id")
}

func TestHandlers_Downloads(t *testing.T) {
	reports := &mockReports{
		WorkbookFunc:  func(ctx context.Context, id string) ([]byte, error) { return []byte("PK"), nil },
		LetterPDFFunc: func(ctx context.Context, id string) ([]byte, error) { return nil, service.ErrResultNotReady },
	}
	s := newTestServer(&mockCoordinator{}, reports)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/"+testID+"/report.xlsx", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), testID+"-audit.xlsx")
	assert.Equal(t, "PK", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/"+testID+"/letter.pdf", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_ListSessions(t *testing.T) {
	var gotLimit, gotOffset int
	s := newTestServer(&mockCoordinator{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
			gotLimit, gotOffset = limit, offset
			return []*entity.AuditSession{
				{ID: testID, Status: entity.StatusCompleted, Summary: &entity.FinancialSummary{AmountUnderReview: 0}},
				{ID: "AUD-0000ABCE", Status: entity.StatusCreated},
			}, nil
		},
	}, nil)

	rec, resp := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/audit?limit=5&offset=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, 10, gotOffset)
	rows := resp.Data.([]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, float64(0), rows[0].(map[string]interface{})["amount_under_review"])
	assert.NotContains(t, rows[1].(map[string]interface{}), "amount_under_review")
}

func TestHandlers_HealthCheck(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode

	healthy := NewServer(cfg, &mockCoordinator{}, nil, nil, nopLogger{})
	rec, resp := doRequest(healthy, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	down := NewServer(cfg, &mockCoordinator{}, nil, func(ctx context.Context) (bool, interface{}) {
		return false, map[string]string{"database": "ping failed"}
	}, nopLogger{})
	rec, resp = doRequest(down, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Data.(map[string]interface{})["status"])
}
