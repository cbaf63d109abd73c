package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cargoflow/audittrail/internal/services"
)

// AuditHandler serves the read-only query surface over the audit log.
type AuditHandler struct {
	service *services.QueryService
}

func NewAuditHandler(service *services.QueryService) *AuditHandler {
	return &AuditHandler{service: service}
}

// GetDocumentHistory returns the audit history for a document addressed by
// its natural key.
func (h *AuditHandler) GetDocumentHistory(c *gin.Context) {
	q := listQuery(c)
	q.JobNo = c.Param("job_no")
	q.Year = c.Param("year")
	q.Username = c.Query("username")
	q.FieldPath = c.Query("field_path")

	h.respondList(c, q)
}

// GetActorHistory returns the audit history for one actor by username.
func (h *AuditHandler) GetActorHistory(c *gin.Context) {
	q := listQuery(c)
	q.Username = c.Param("username")
	q.UsernameExact = true
	q.DocumentType = c.Query("document_type")

	h.respondList(c, q)
}

// GetDocumentByID returns the audit history for a document by opaque id.
func (h *AuditHandler) GetDocumentByID(c *gin.Context) {
	q := listQuery(c)
	q.DocumentID = c.Param("id")

	h.respondList(c, q)
}

// GetStats returns aggregate statistics for a date range.
func (h *AuditHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(
		c.Query("from_date"),
		c.Query("to_date"),
		c.Query("granularity"),
	)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetFieldHistory returns every recorded change for one exact field path on
// one document.
func (h *AuditHandler) GetFieldHistory(c *gin.Context) {
	q := listQuery(c)
	q.DocumentID = c.Query("document_id")
	q.JobNo = c.Query("job_no")
	q.Year = c.Query("year")
	q.FieldPath = c.Query("field_path")

	page, err := h.service.GetFieldHistory(q)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AuditHandler) respondList(c *gin.Context, q services.AuditQuery) {
	page, err := h.service.List(q)
	if err != nil {
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

// listQuery reads the filters shared by every list endpoint.
func listQuery(c *gin.Context) services.AuditQuery {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return services.AuditQuery{
		Action:    c.Query("action"),
		IPAddress: c.Query("ip_address"),
		FromDate:  c.Query("from_date"),
		ToDate:    c.Query("to_date"),
		Page:      page,
		Limit:     limit,
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, services.ErrInvalidDateRange) ||
		errors.Is(err, services.ErrInvalidDate) ||
		errors.Is(err, services.ErrInvalidGranularity) ||
		errors.Is(err, services.ErrMissingFieldPath) ||
		errors.Is(err, services.ErrMissingDocument)
}
