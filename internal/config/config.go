package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string

	// Audited document store. The engine is schema-agnostic: it only needs
	// to know which table holds the documents and which columns carry the
	// opaque id and the natural key.
	DocumentTable    string
	DocumentType     string
	DocumentIDColumn string
	JobNoColumn      string
	YearColumn       string
}

// Load reads env vars (and an optional .env file) and falls back to defaults
// so the server can boot with zero configuration.
func Load() (Config, error) {
	// Best-effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Environment:      getEnv("AUDIT_ENV", "development"),
		HTTPPort:         getEnv("AUDIT_HTTP_PORT", "8080"),
		DatabasePath:     getEnv("AUDIT_DB_PATH", filepath.Join("data", "audittrail.db")),
		LogDir:           getEnv("AUDIT_LOG_DIR", filepath.Join("data", "logs")),
		DocumentTable:    getEnv("AUDIT_DOC_TABLE", "jobs"),
		DocumentType:     getEnv("AUDIT_DOC_TYPE", "Job"),
		DocumentIDColumn: getEnv("AUDIT_DOC_ID_COLUMN", "id"),
		JobNoColumn:      getEnv("AUDIT_JOB_NO_COLUMN", "job_no"),
		YearColumn:       getEnv("AUDIT_YEAR_COLUMN", "year"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
