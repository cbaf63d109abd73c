package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/api/handlers"
	"github.com/cargoflow/audittrail/internal/api/middleware"
	"github.com/cargoflow/audittrail/internal/config"
	"github.com/cargoflow/audittrail/internal/metrics"
	"github.com/cargoflow/audittrail/internal/models"
	"github.com/cargoflow/audittrail/internal/services"
)

// Register wires up the audit API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) error {
	if err := db.AutoMigrate(
		&models.AuditRecord{},
		&models.IdentityMapping{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	queryService := services.NewQueryService(db)
	identityService := services.NewIdentityService(db)

	auditHandler := handlers.NewAuditHandler(queryService)
	identityHandler := handlers.NewIdentityHandler(identityService)

	api := router.Group("/api/v1")
	{
		audit := api.Group("/audit")
		audit.GET("/history/:job_no/:year", auditHandler.GetDocumentHistory)
		audit.GET("/actor/:username", auditHandler.GetActorHistory)
		audit.GET("/document/:id", auditHandler.GetDocumentByID)
		audit.GET("/stats", auditHandler.GetStats)
		audit.GET("/field-history", auditHandler.GetFieldHistory)

		api.GET("/identities", identityHandler.List)
		api.GET("/identities/:actor_id", identityHandler.GetByActorID)
	}

	return nil
}

// Capture builds the audit capture middleware wired to the configured
// document store, for mounting on the business routes that mutate audited
// documents.
func Capture(db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return middleware.AuditCapture(middleware.CaptureOptions{
		Loader:       services.NewSnapshotService(db, cfg),
		Recorder:     services.NewRecorderService(db),
		Identity:     services.NewIdentityService(db),
		DocumentType: cfg.DocumentType,
		IdentifyingFields: []string{
			cfg.DocumentIDColumn,
			cfg.JobNoColumn,
			cfg.YearColumn,
		},
	})
}
