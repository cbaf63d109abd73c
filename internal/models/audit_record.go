package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/diff"
)

// AuditAction classifies the mutating operation an audit record describes.
type AuditAction string

const (
	ActionCreate           AuditAction = "CREATE"
	ActionUpdate           AuditAction = "UPDATE"
	ActionDelete           AuditAction = "DELETE"
	ActionBulkCreateUpdate AuditAction = "BULK_CREATE_UPDATE"
)

// Valid reports whether the action is one of the known kinds.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionBulkCreateUpdate:
		return true
	}
	return false
}

// AuditRecord is one append-only audit entry: who changed which document,
// how, and the field-level differences. Records are written once by the
// recorder and never mutated or deleted by the system.
type AuditRecord struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	UUID string `json:"uuid" gorm:"uniqueIndex"`

	DocumentID   string `json:"document_id" gorm:"index"`
	DocumentType string `json:"document_type" gorm:"index"`

	// Secondary human-meaningful keys for the dominant document type.
	JobNo string `json:"job_no,omitempty" gorm:"index:idx_audit_natural_key"`
	Year  string `json:"year,omitempty" gorm:"index:idx_audit_natural_key"`

	ActorID   string      `json:"actor_id" gorm:"index"`
	ActorName string      `json:"actor_name" gorm:"index"`
	ActorRole string      `json:"actor_role"`
	Action    AuditAction `json:"action" gorm:"index"`

	Changes datatypes.JSON `json:"changes"`

	Endpoint  string `json:"endpoint"`
	Method    string `json:"method"`
	IPAddress string `json:"ip_address" gorm:"index"`
	UserAgent string `json:"user_agent"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (r *AuditRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return
}

// SetChanges serializes the change list into the JSON column.
func (r *AuditRecord) SetChanges(changes []diff.Change) error {
	if changes == nil {
		changes = []diff.Change{}
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	r.Changes = datatypes.JSON(raw)
	return nil
}

// GetChanges deserializes the change list from the JSON column.
func (r *AuditRecord) GetChanges() ([]diff.Change, error) {
	if len(r.Changes) == 0 {
		return nil, nil
	}
	var changes []diff.Change
	if err := json.Unmarshal(r.Changes, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
