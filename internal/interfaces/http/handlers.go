package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/G1r1shCodes/BimaBot/internal/application/service"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/pkg/utils"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"

	// retryAfterSeconds is advertised when the audit pool is full
	retryAfterSeconds = 5
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	coordinator    service.AuditCoordinator
	reports        service.ReportService
	health         HealthChecker
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	coordinator service.AuditCoordinator,
	reports service.ReportService,
	health HealthChecker,
	maxUploadBytes int64,
	logger Logger,
) *Handlers {
	return &Handlers{
		coordinator:    coordinator,
		reports:        reports,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// StartResponse acknowledges a new session
type StartResponse struct {
	AuditID   string `json:"audit_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// CompleteResponse reports the status after a completion request
type CompleteResponse struct {
	AuditID string `json:"audit_id"`
	Status  string `json:"status"`
}

// ResultResponse is the full result of a completed session
type ResultResponse struct {
	AuditID       string                   `json:"audit_id"`
	Status        string                   `json:"status"`
	Bill          *entity.Bill             `json:"bill"`
	Policy        *entity.PolicyTerms      `json:"policy"`
	Flags         []entity.Flag            `json:"flags"`
	Summary       *entity.FinancialSummary `json:"summary"`
	DisputeLetter string                   `json:"dispute_letter"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

// SessionSummary is one row of the session listing
type SessionSummary struct {
	AuditID           string   `json:"audit_id"`
	Status            string   `json:"status"`
	BillUploaded      bool     `json:"bill_uploaded"`
	PolicyUploaded    bool     `json:"policy_uploaded"`
	FlagCount         int      `json:"flag_count"`
	AmountUnderReview *float64 `json:"amount_under_review,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// ListSessionsRequest represents query parameters for listing sessions
type ListSessionsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// StartSession handles POST /api/audit/start
func (h *Handlers) StartSession(c *gin.Context) {
	session, err := h.coordinator.Start(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: StartResponse{
			AuditID:   session.ID,
			Status:    session.Status,
			CreatedAt: session.CreatedAt.Format(time.RFC3339),
		},
	})
}

// UploadDocuments handles POST /api/audit/:id/upload. The multipart form
// carries a "bill" file, a "policy" file, or both.
func (h *Handlers) UploadDocuments(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	// two documents plus multipart overhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxUploadBytes+1<<20)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "expected multipart form with bill and/or policy files"})
		return
	}

	var result *service.AttachResult
	attached := 0
	for _, kind := range []entity.DocumentKind{entity.DocumentBill, entity.DocumentPolicy} {
		files := form.File[string(kind)]
		if len(files) == 0 {
			continue
		}

		content, err := h.readUpload(files[0])
		if err != nil {
			h.writeError(c, err)
			return
		}

		result, err = h.coordinator.Upload(c.Request.Context(), id, kind, utils.SanitizeFilename(files[0].Filename), content)
		if err != nil {
			h.writeError(c, err)
			return
		}
		attached++
	}

	if attached == 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "no bill or policy file in request"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// readUpload reads one part, rejecting it once it passes the size limit
func (h *Handlers) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxUploadBytes {
		return nil, &entity.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("file exceeds %d MB limit", h.maxUploadBytes>>20),
		}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return content, nil
}

// CompleteSession handles POST /api/audit/:id/complete
func (h *Handlers) CompleteSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	status, err := h.coordinator.Complete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    CompleteResponse{AuditID: id, Status: status},
	})
}

// GetStatus handles GET /api/audit/:id/status
func (h *Handlers) GetStatus(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	status, err := h.coordinator.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    status,
	})
}

// GetResult handles GET /api/audit/:id/result
func (h *Handlers) GetResult(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.coordinator.Result(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toResultResponse(session),
	})
}

// DownloadWorkbook handles GET /api/audit/:id/report.xlsx
func (h *Handlers) DownloadWorkbook(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	data, err := h.reports.Workbook(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-audit.xlsx"`, id))
	c.Data(http.StatusOK, contentTypeXLSX, data)
}

// DownloadLetter handles GET /api/audit/:id/letter.pdf
func (h *Handlers) DownloadLetter(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	data, err := h.reports.LetterPDF(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-dispute-letter.pdf"`, id))
	c.Data(http.StatusOK, contentTypePDF, data)
}

// ListSessions handles GET /api/audit
func (h *Handlers) ListSessions(c *gin.Context) {
	var req ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	sessions, err := h.coordinator.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rows := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, toSessionSummary(s))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    rows,
	})
}

// sessionID validates the :id path parameter and writes a 400 when it is
// malformed
func (h *Handlers) sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := utils.ValidateSessionID(id); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return "", false
	}
	return id, true
}

// writeError maps application errors onto status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	var (
		ve     *entity.ValidationError
		pe     *entity.PreconditionError
		failed *service.SessionFailedError
	)

	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrResultNotReady), errors.Is(err, service.ErrSessionBusy):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrCapacityExceeded):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: failed.Reason, Kind: failed.Kind})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: ve.Error()})
	case errors.As(err, &pe):
		c.JSON(http.StatusConflict, Response{Success: false, Error: pe.Error()})
	default:
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
	}
}

func toResultResponse(s *entity.AuditSession) ResultResponse {
	flags := s.Flags
	if flags == nil {
		flags = []entity.Flag{}
	}
	return ResultResponse{
		AuditID:       s.ID,
		Status:        s.Status,
		Bill:          s.Bill,
		Policy:        s.Policy,
		Flags:         flags,
		Summary:       s.Summary,
		DisputeLetter: s.DisputeLetter,
		CompletedAt:   s.CompletedAt,
	}
}

func toSessionSummary(s *entity.AuditSession) SessionSummary {
	row := SessionSummary{
		AuditID:        s.ID,
		Status:         s.Status,
		BillUploaded:   s.BillUploaded(),
		PolicyUploaded: s.PolicyUploaded(),
		FlagCount:      len(s.Flags),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.Format(time.RFC3339),
	}
	if s.Summary != nil {
		amount := s.Summary.AmountUnderReview
		row.AmountUnderReview = &amount
	}
	return row
}
