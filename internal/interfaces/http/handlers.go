package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finhub-labs/invoiceflow/internal/models"
	"github.com/finhub-labs/invoiceflow/internal/pipeline"
	"github.com/finhub-labs/invoiceflow/internal/repository"
	"github.com/finhub-labs/invoiceflow/internal/storage"
	"github.com/finhub-labs/invoiceflow/pkg/utils"
)

// IngestionService is the pipeline surface the HTTP layer drives.
type IngestionService interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error)
	UpdateFields(ctx context.Context, invoiceID string, update models.FieldUpdate, changedBy string) (*models.InvoiceRecord, error)
	Approve(ctx context.Context, invoiceID, approvedBy, notes string) (*models.InvoiceRecord, error)
	Delete(ctx context.Context, invoiceID, deletedBy string) error
}

// RecordQueries is the read-only record store surface for listings and the
// dashboard.
type RecordQueries interface {
	GetByID(ctx context.Context, invoiceID string) (*models.InvoiceRecord, error)
	ListByVendor(ctx context.Context, vendorID string) ([]*models.InvoiceRecord, error)
	ListAll(ctx context.Context) ([]*models.InvoiceRecord, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	TotalAmount(ctx context.Context) (float64, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	service IngestionService
	queries RecordQueries
	files   storage.FileStore
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service IngestionService, queries RecordQueries, files storage.FileStore, logger Logger) *Handlers {
	return &Handlers{
		service: service,
		queries: queries,
		files:   files,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UploadResponse reports the ingestion outcome: a stored record, or a
// duplicate with the existing record's id.
type UploadResponse struct {
	Duplicate  bool                  `json:"duplicate"`
	ExistingID string                `json:"existing_id,omitempty"`
	Degraded   bool                  `json:"degraded,omitempty"`
	Record     *models.InvoiceRecord `json:"record,omitempty"`
}

// DashboardResponse aggregates record counts and totals.
type DashboardResponse struct {
	TotalInvoices int                   `json:"total_invoices"`
	ByStatus      map[models.Status]int `json:"by_status"`
	TotalAmount   float64               `json:"total_amount"`
}

// Caller identity arrives via headers set by the gateway in front of this
// service; no token verification happens here.
const (
	headerVendorID   = "X-Vendor-ID"
	headerVendorName = "X-Vendor-Name"
	headerUser       = "X-User"
	headerRoles      = "X-Roles"
)

func callerRoles(c *gin.Context) map[string]bool {
	roles := map[string]bool{}
	for _, role := range strings.Split(c.GetHeader(headerRoles), ",") {
		role = strings.TrimSpace(strings.ToLower(role))
		if role != "" {
			roles[role] = true
		}
	}
	return roles
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Upload handles POST /api/invoices
func (h *Handlers) Upload(c *gin.Context) {
	vendorID := c.GetHeader(headerVendorID)
	if vendorID == "" {
		vendorID = c.PostForm("vendor_id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "file is required"})
		return
	}
	if fileHeader.Size > utils.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "cannot read uploaded file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "cannot read uploaded file"})
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), pipeline.IngestRequest{
		VendorID:   vendorID,
		VendorName: c.GetHeader(headerVendorName),
		FileName:   fileHeader.Filename,
		Content:    content,
	})
	if err != nil {
		h.renderError(c, err, "ingestion failed")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: UploadResponse{
			Duplicate:  result.Duplicate,
			ExistingID: result.ExistingID,
			Degraded:   result.Degraded,
			Record:     result.Record,
		},
	})
}

// List handles GET /api/invoices. Accounts-role callers see every record;
// everyone else sees their own vendor scope.
func (h *Handlers) List(c *gin.Context) {
	var (
		records []*models.InvoiceRecord
		err     error
	)
	if callerRoles(c)["accounts"] {
		records, err = h.queries.ListAll(c.Request.Context())
	} else {
		vendorID := c.GetHeader(headerVendorID)
		if vendorID == "" {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "vendor identity is required"})
			return
		}
		records, err = h.queries.ListByVendor(c.Request.Context(), vendorID)
	}
	if err != nil {
		h.logger.Error("Failed to list invoices", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoices"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// Get handles GET /api/invoices/:id
func (h *Handlers) Get(c *gin.Context) {
	record, err := h.queries.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
			return
		}
		h.logger.Error("Failed to get invoice", "invoice_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoice"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// Download handles GET /api/invoices/:id/document
func (h *Handlers) Download(c *gin.Context) {
	record, err := h.queries.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoice"})
		return
	}

	content, err := h.files.Fetch(record.DocumentURL)
	if err != nil {
		h.logger.Error("Failed to fetch document", "invoice_id", record.InvoiceID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to fetch document"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+record.DocumentName+`"`)
	c.Data(http.StatusOK, "application/octet-stream", content)
}

// Update handles PATCH /api/invoices/:id
func (h *Handlers) Update(c *gin.Context) {
	var update models.FieldUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid update payload"})
		return
	}

	record, err := h.service.UpdateFields(c.Request.Context(), c.Param("id"), update, c.GetHeader(headerUser))
	if err != nil {
		h.renderError(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// ApproveRequest is the approve endpoint's payload.
type ApproveRequest struct {
	Notes string `json:"notes"`
}

// Approve handles POST /api/invoices/:id/approve. Manager role required.
func (h *Handlers) Approve(c *gin.Context) {
	if !callerRoles(c)["manager"] {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "manager role required"})
		return
	}

	var req ApproveRequest
	_ = c.ShouldBindJSON(&req)

	approvedBy := c.GetHeader(headerUser)
	record, err := h.service.Approve(c.Request.Context(), c.Param("id"), approvedBy, req.Notes)
	if err != nil {
		h.renderError(c, err, "approval failed")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// Delete handles DELETE /api/invoices/:id. Manager role required.
func (h *Handlers) Delete(c *gin.Context) {
	if !callerRoles(c)["manager"] {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "manager role required"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.GetHeader(headerUser)); err != nil {
		h.renderError(c, err, "delete failed")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Dashboard handles GET /api/dashboard/metrics
func (h *Handlers) Dashboard(c *gin.Context) {
	counts, err := h.queries.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute dashboard counts", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute metrics"})
		return
	}
	total, err := h.queries.TotalAmount(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute dashboard total", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute metrics"})
		return
	}

	var count int
	for _, n := range counts {
		count += n
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: DashboardResponse{
			TotalInvoices: count,
			ByStatus:      counts,
			TotalAmount:   total,
		},
	})
}

// renderError maps pipeline failures onto HTTP statuses.
func (h *Handlers) renderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, pipeline.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
	default:
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
	}
}
