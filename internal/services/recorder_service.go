package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/logger"
	"github.com/cargoflow/audittrail/internal/metrics"
	"github.com/cargoflow/audittrail/internal/models"
)

var (
	ErrMissingDocumentID = errors.New("audit record requires a document id")
	ErrInvalidAction     = errors.New("unknown audit action")
)

// RecorderService owns all writes to the audit log. Records are inserted
// one per call; the log is append-only.
type RecorderService struct {
	db *gorm.DB
}

func NewRecorderService(db *gorm.DB) *RecorderService {
	return &RecorderService{db: db}
}

// Record validates and persists one audit record, returning its UUID.
func (s *RecorderService) Record(rec *models.AuditRecord) (string, error) {
	if !rec.Action.Valid() {
		return "", ErrInvalidAction
	}
	// Bulk operations act on many documents at once and carry a single
	// synthetic change describing the scope instead of a document id.
	if rec.DocumentID == "" && rec.Action != models.ActionBulkCreateUpdate {
		return "", ErrMissingDocumentID
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if len(rec.Changes) == 0 {
		_ = rec.SetChanges(nil)
	}

	if err := s.db.Create(rec).Error; err != nil {
		metrics.IncRecordFailure()
		return "", err
	}
	metrics.IncRecordWritten(string(rec.Action))
	return rec.UUID, nil
}

// RecordAsync persists the record on a detached goroutine. Failures are
// logged and counted, never surfaced: audit logging must not break the
// business operation it observes.
func (s *RecorderService) RecordAsync(rec *models.AuditRecord) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.IncRecordFailure()
				logger.Log().Errorf("panic while writing audit record: %v", r)
			}
		}()

		if _, err := s.Record(rec); err != nil {
			logger.WithFields(map[string]interface{}{
				"document_id": rec.DocumentID,
				"action":      rec.Action,
			}).WithError(err).Warn("audit record write failed")
		}
	}()
}
