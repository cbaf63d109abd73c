package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoflow/audittrail/internal/diff"
	"github.com/cargoflow/audittrail/internal/models"
)

func TestRecordPersistsRecord(t *testing.T) {
	db := openTestDB(t)
	svc := NewRecorderService(db)

	rec := &models.AuditRecord{
		DocumentID:   "42",
		DocumentType: "Job",
		JobNo:        "EXP-1042",
		Year:         "2026",
		ActorID:      "ACT-OPSADMIN-x",
		ActorName:    "ops.admin",
		Action:       models.ActionUpdate,
		Endpoint:     "/api/jobs/EXP-1042/2026",
		Method:       "PUT",
	}
	require.NoError(t, rec.SetChanges([]diff.Change{
		{Field: "status", FieldPath: "status", OldValue: "open", NewValue: "closed", ChangeType: diff.ChangeModified},
	}))

	id, err := svc.Record(rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var stored models.AuditRecord
	require.NoError(t, db.Where("uuid = ?", id).First(&stored).Error)
	assert.Equal(t, "42", stored.DocumentID)
	assert.False(t, stored.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now(), stored.Timestamp, time.Minute)

	changes, err := stored.GetChanges()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeModified, changes[0].ChangeType)
}

func TestRecordRequiresDocumentID(t *testing.T) {
	svc := NewRecorderService(openTestDB(t))

	_, err := svc.Record(&models.AuditRecord{Action: models.ActionUpdate})
	assert.ErrorIs(t, err, ErrMissingDocumentID)
}

func TestRecordBulkAllowsEmptyDocumentID(t *testing.T) {
	svc := NewRecorderService(openTestDB(t))

	rec := &models.AuditRecord{
		Action:    models.ActionBulkCreateUpdate,
		ActorName: "ops.admin",
	}
	require.NoError(t, rec.SetChanges([]diff.Change{
		{Field: "documents", FieldPath: "", NewValue: "jobs 2026 batch import", ChangeType: diff.ChangeAdded},
	}))

	id, err := svc.Record(rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRecordRejectsUnknownAction(t *testing.T) {
	svc := NewRecorderService(openTestDB(t))

	_, err := svc.Record(&models.AuditRecord{DocumentID: "1", Action: "TOUCH"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRecordAsyncNeverPanicsOnFailure(t *testing.T) {
	db := openTestDB(t)
	svc := NewRecorderService(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// Must not panic or block the caller even with a dead store.
	svc.RecordAsync(&models.AuditRecord{DocumentID: "1", Action: models.ActionUpdate})
	time.Sleep(50 * time.Millisecond)
}

func TestRecordAsyncEventuallyPersists(t *testing.T) {
	db := openTestDB(t)
	svc := NewRecorderService(db)

	svc.RecordAsync(&models.AuditRecord{
		DocumentID: "7",
		Action:     models.ActionDelete,
		ActorName:  "ops.admin",
	})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&models.AuditRecord{}).Where("document_id = ?", "7").Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}
