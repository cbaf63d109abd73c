package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/diff"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&AuditRecord{}, &IdentityMapping{}))
	return db
}

func TestAuditRecord_BeforeCreate(t *testing.T) {
	db := setupTestDB(t)

	rec := &AuditRecord{
		DocumentID:   "EXP-1042/2026",
		DocumentType: "Job",
		ActorID:      "ACT-OPSADMIN",
		Action:       ActionUpdate,
	}
	require.NoError(t, db.Create(rec).Error)

	assert.NotEmpty(t, rec.UUID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestAuditRecord_BeforeCreatePreservesExplicitValues(t *testing.T) {
	db := setupTestDB(t)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := &AuditRecord{
		UUID:         "fixed-uuid",
		DocumentID:   "EXP-1042/2026",
		DocumentType: "Job",
		Action:       ActionCreate,
		Timestamp:    ts,
	}
	require.NoError(t, db.Create(rec).Error)

	assert.Equal(t, "fixed-uuid", rec.UUID)
	assert.True(t, ts.Equal(rec.Timestamp))
}

func TestAuditRecord_ChangesRoundTrip(t *testing.T) {
	rec := &AuditRecord{}
	require.NoError(t, rec.SetChanges([]diff.Change{
		{
			Field:      "status",
			FieldPath:  "status",
			OldValue:   "DRAFT",
			NewValue:   "CONFIRMED",
			ChangeType: diff.ChangeModified,
		},
	}))

	got, err := rec.GetChanges()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "status", got[0].FieldPath)
	assert.Equal(t, "DRAFT", got[0].OldValue)
	assert.Equal(t, "CONFIRMED", got[0].NewValue)
	assert.Equal(t, diff.ChangeModified, got[0].ChangeType)
}

func TestAuditRecord_SetChangesNilBecomesEmptyList(t *testing.T) {
	rec := &AuditRecord{}
	require.NoError(t, rec.SetChanges(nil))
	assert.Equal(t, "[]", string(rec.Changes))
}

func TestAuditAction_Valid(t *testing.T) {
	for _, a := range []AuditAction{ActionCreate, ActionUpdate, ActionDelete, ActionBulkCreateUpdate} {
		assert.True(t, a.Valid(), string(a))
	}
	assert.False(t, AuditAction("DESTROY").Valid())
	assert.False(t, AuditAction("").Valid())
}

func TestIdentityMapping_UniqueUsername(t *testing.T) {
	db := setupTestDB(t)

	first := &IdentityMapping{Username: "ops.admin", ActorID: "ACT-1"}
	require.NoError(t, db.Create(first).Error)

	dup := &IdentityMapping{Username: "ops.admin", ActorID: "ACT-2"}
	assert.Error(t, db.Create(dup).Error)
}
