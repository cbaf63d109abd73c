package main

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/diff"
	"github.com/cargoflow/audittrail/internal/models"
)

func main() {
	db, err := gorm.Open(sqlite.Open("./data/audittrail.db"), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.AuditRecord{},
		&models.IdentityMapping{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("✓ Database migrated successfully")

	now := time.Now().UTC()
	mappings := []models.IdentityMapping{
		{Username: "ops.admin", ActorID: "ACT-OPSADMIN-seed01", CreatedAt: now, LastUsedAt: now},
		{Username: "docs.clerk", ActorID: "ACT-DOCSCLERK-seed02", CreatedAt: now, LastUsedAt: now},
	}
	for _, m := range mappings {
		if err := db.Where("username = ?", m.Username).FirstOrCreate(&m).Error; err != nil {
			log.Fatal("Failed to seed identity mapping:", err)
		}
	}
	fmt.Printf("✓ Seeded %d identity mappings\n", len(mappings))

	records := []struct {
		rec     models.AuditRecord
		changes []diff.Change
	}{
		{
			rec: models.AuditRecord{
				DocumentID:   "1",
				DocumentType: "Job",
				JobNo:        "EXP-1042",
				Year:         "2026",
				ActorID:      "ACT-OPSADMIN-seed01",
				ActorName:    "ops.admin",
				ActorRole:    "admin",
				Action:       models.ActionCreate,
				Endpoint:     "/api/jobs",
				Method:       "POST",
				IPAddress:    "10.0.0.5",
				Timestamp:    now.Add(-2 * time.Hour),
			},
			changes: []diff.Change{
				{Field: "job_no", FieldPath: "job_no", NewValue: "EXP-1042", ChangeType: diff.ChangeAdded},
				{Field: "year", FieldPath: "year", NewValue: "2026", ChangeType: diff.ChangeAdded},
			},
		},
		{
			rec: models.AuditRecord{
				DocumentID:   "1",
				DocumentType: "Job",
				JobNo:        "EXP-1042",
				Year:         "2026",
				ActorID:      "ACT-DOCSCLERK-seed02",
				ActorName:    "docs.clerk",
				ActorRole:    "documentation",
				Action:       models.ActionUpdate,
				Endpoint:     "/api/jobs/EXP-1042/2026",
				Method:       "PUT",
				IPAddress:    "10.0.0.9",
				Timestamp:    now.Add(-1 * time.Hour),
			},
			changes: []diff.Change{
				{Field: "status", FieldPath: "status", OldValue: "open", NewValue: "in_transit", ChangeType: diff.ChangeModified},
				{Field: "0", FieldPath: "containers.0", NewValue: "MSKU-884213", ChangeType: diff.ChangeAdded},
			},
		},
	}
	for _, entry := range records {
		rec := entry.rec
		if err := rec.SetChanges(entry.changes); err != nil {
			log.Fatal("Failed to serialize changes:", err)
		}
		if err := db.Create(&rec).Error; err != nil {
			log.Fatal("Failed to seed audit record:", err)
		}
	}
	fmt.Printf("✓ Seeded %d audit records\n", len(records))
}
