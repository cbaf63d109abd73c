package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cargoflow/audittrail/internal/models"
)

func TestRollupRefreshCountsStores(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, models.AuditRecord{DocumentID: "1", ActorName: "a", Timestamp: time.Now()}, nil)
	require.NoError(t, db.Create(&models.IdentityMapping{
		Username: "ops.admin", ActorID: "ACT-X", LastUsedAt: time.Now(),
	}).Error)

	svc := NewRollupService(db)
	// Must not panic and must settle the gauges from the store.
	svc.Refresh()

	require.NoError(t, svc.Start())
	svc.Stop()
}
