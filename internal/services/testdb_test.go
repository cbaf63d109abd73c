package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/models"
)

// openTestDB creates a SQLite in-memory DB unique per test with a busy
// timeout so concurrent writers in race tests retry instead of failing.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	require.NoError(t, db.AutoMigrate(&models.AuditRecord{}, &models.IdentityMapping{}))
	return db
}
