package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/config"
)

// SnapshotService loads before/after document snapshots from the audited
// document store. It is deliberately schema-agnostic: it reads whole rows
// from a configured table as untyped maps and never interprets them.
type SnapshotService struct {
	db          *gorm.DB
	table       string
	idColumn    string
	jobNoColumn string
	yearColumn  string
}

func NewSnapshotService(db *gorm.DB, cfg config.Config) *SnapshotService {
	return &SnapshotService{
		db:          db,
		table:       cfg.DocumentTable,
		idColumn:    cfg.DocumentIDColumn,
		jobNoColumn: cfg.JobNoColumn,
		yearColumn:  cfg.YearColumn,
	}
}

// LoadByID fetches a snapshot by opaque id. A missing document returns
// (nil, nil): absence of a loadable snapshot is not an error.
func (s *SnapshotService) LoadByID(id string) (map[string]any, error) {
	var row map[string]any
	err := s.db.Table(s.table).
		Where(fmt.Sprintf("%s = ?", s.idColumn), id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot by id: %w", err)
	}
	return row, nil
}

// LoadByNaturalKey fetches a snapshot by the job number + year pair.
func (s *SnapshotService) LoadByNaturalKey(jobNo, year string) (map[string]any, error) {
	var row map[string]any
	err := s.db.Table(s.table).
		Where(fmt.Sprintf("%s = ? AND %s = ?", s.jobNoColumn, s.yearColumn), jobNo, year).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot by natural key: %w", err)
	}
	return row, nil
}
