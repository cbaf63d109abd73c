package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cargoflow/audittrail/internal/diff"
	"github.com/cargoflow/audittrail/internal/metrics"
	"github.com/cargoflow/audittrail/internal/models"
)

// Context keys under which collaborators earlier in the pipeline (auth,
// routing, bulk handlers) can hand hints to the audit capture middleware.
const (
	DocumentIDHintKey = "audit.documentID"
	JobNoHintKey      = "audit.jobNo"
	YearHintKey       = "audit.year"
	BulkScopeHintKey  = "audit.bulkScope"
	UsernameHintKey   = "audit.username"
	RoleHintKey       = "audit.role"
	SessionHintKey    = "audit.sessionID"
	ReasonHintKey     = "audit.reason"
)

// Header fallbacks for deployments where no upstream middleware sets hints.
const (
	UsernameHeader = "X-Audit-User"
	RoleHeader     = "X-Audit-Role"
	ReasonHeader   = "X-Audit-Reason"
)

// SnapshotLoader fetches the audited document as an untyped nested map.
// Implementations return (nil, nil) when the document does not exist.
type SnapshotLoader interface {
	LoadByID(id string) (map[string]any, error)
	LoadByNaturalKey(jobNo, year string) (map[string]any, error)
}

// Recorder persists audit records off the response path.
type Recorder interface {
	RecordAsync(rec *models.AuditRecord)
}

// IdentityResolver maps a username to a stable actor id.
type IdentityResolver interface {
	Resolve(username string) string
}

// CaptureOptions wires the audit capture middleware to its collaborators.
type CaptureOptions struct {
	Loader       SnapshotLoader
	Recorder     Recorder
	Identity     IdentityResolver
	DocumentType string

	// IdentifyingFields are the snapshot keys used to synthesize the
	// minimal change list for CREATE, where there is no before state to
	// diff against.
	IdentifyingFields []string
}

var defaultIdentifyingFields = []string{"id", "job_no", "year"}

type docIdentity struct {
	documentID string
	jobNo      string
	year       string
}

func (d docIdentity) empty() bool {
	return d.documentID == "" && (d.jobNo == "" || d.year == "")
}

// AuditCapture intercepts mutating requests on the wrapped routes: it loads
// the document's before state, lets the handler run, reloads the after
// state, diffs the two and hands the resulting record to the recorder on a
// background task. It never alters the response, and a failure anywhere in
// the capture path never reaches the client.
func AuditCapture(opts CaptureOptions) gin.HandlerFunc {
	idFields := opts.IdentifyingFields
	if len(idFields) == 0 {
		idFields = defaultIdentifyingFields
	}

	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		ident := resolveDocIdentity(c)
		before := loadSnapshot(c, opts.Loader, ident)

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			metrics.IncCaptureSkipped()
			return
		}

		// A CREATE handler may only know the new document's identity
		// after it has run; pick up late hints before the after-load.
		if ident.empty() {
			ident = resolveDocIdentity(c)
		}

		_, bulk := c.Get(BulkScopeHintKey)
		action := classifyAction(c.Request.Method, before != nil, bulk)

		var after map[string]any
		if action != models.ActionDelete && action != models.ActionBulkCreateUpdate {
			after = loadSnapshot(c, opts.Loader, ident)
		}

		changes := buildChanges(c, action, before, after, ident, idFields)
		if action == models.ActionUpdate && len(changes) == 0 {
			metrics.IncCaptureSkipped()
			return
		}

		username := hintOrHeader(c, UsernameHintKey, UsernameHeader)
		if username == "" {
			username = "unknown"
		}

		docID := ident.documentID
		if docID == "" {
			docID = documentIDFrom(after)
		}
		if docID == "" {
			docID = documentIDFrom(before)
		}
		// No opaque id could be learned from either snapshot (store
		// unreachable, or a natural-key-only route). The natural key
		// still identifies the document for reviewers.
		if docID == "" && ident.jobNo != "" && ident.year != "" {
			docID = ident.jobNo + "/" + ident.year
		}

		rec := &models.AuditRecord{
			DocumentID:   docID,
			DocumentType: opts.DocumentType,
			JobNo:        ident.jobNo,
			Year:         ident.year,
			ActorID:      opts.Identity.Resolve(username),
			ActorName:    username,
			ActorRole:    hintOrHeader(c, RoleHintKey, RoleHeader),
			Action:       action,
			Endpoint:     c.Request.URL.Path,
			Method:       c.Request.Method,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			Reason:       hintOrHeader(c, ReasonHintKey, ReasonHeader),
			SessionID:    c.GetString(SessionHintKey),
		}
		if err := rec.SetChanges(changes); err != nil {
			GetRequestLogger(c).WithError(err).Warn("audit capture: serialize changes failed")
			return
		}

		opts.Recorder.RecordAsync(rec)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resolveDocIdentity picks the document identity by priority: context hints
// set earlier in the pipeline, then the natural-key route params, then an
// opaque id route param.
func resolveDocIdentity(c *gin.Context) docIdentity {
	ident := docIdentity{
		documentID: c.GetString(DocumentIDHintKey),
		jobNo:      c.GetString(JobNoHintKey),
		year:       c.GetString(YearHintKey),
	}
	if ident.jobNo == "" {
		ident.jobNo = c.Param("job_no")
	}
	if ident.year == "" {
		ident.year = c.Param("year")
	}
	if ident.documentID == "" && ident.jobNo == "" {
		ident.documentID = c.Param("id")
	}
	return ident
}

// loadSnapshot loads by whichever identity strategy is available. Load
// failures degrade to "no snapshot": the business operation proceeds and
// the audit record is simply less detailed.
func loadSnapshot(c *gin.Context, loader SnapshotLoader, ident docIdentity) map[string]any {
	if loader == nil {
		return nil
	}
	var (
		snapshot map[string]any
		err      error
	)
	switch {
	case ident.jobNo != "" && ident.year != "":
		snapshot, err = loader.LoadByNaturalKey(ident.jobNo, ident.year)
	case ident.documentID != "":
		snapshot, err = loader.LoadByID(ident.documentID)
	default:
		return nil
	}
	if err != nil {
		GetRequestLogger(c).WithError(err).Debug("audit capture: snapshot load failed")
		return nil
	}
	return snapshot
}

// classifyAction maps the HTTP method to the audit action. The business
// routes reuse POST for idempotent upserts, so a POST that targets an
// existing document is an UPDATE, not a CREATE.
func classifyAction(method string, exists, bulk bool) models.AuditAction {
	if bulk {
		return models.ActionBulkCreateUpdate
	}
	switch method {
	case http.MethodDelete:
		return models.ActionDelete
	case http.MethodPost:
		if exists {
			return models.ActionUpdate
		}
		return models.ActionCreate
	default:
		return models.ActionUpdate
	}
}

func buildChanges(c *gin.Context, action models.AuditAction, before, after map[string]any, ident docIdentity, idFields []string) []diff.Change {
	switch action {
	case models.ActionBulkCreateUpdate:
		return []diff.Change{{
			Field:      "documents",
			FieldPath:  "",
			NewValue:   c.GetString(BulkScopeHintKey),
			ChangeType: diff.ChangeAdded,
		}}

	case models.ActionDelete:
		// The after state is definitionally absent: one synthetic
		// whole-document removal instead of a field-by-field diff.
		if before != nil {
			return diff.Diff(diff.FromMap(before), diff.Absent(), "")
		}
		var oldValue any
		if ident.documentID != "" {
			oldValue = ident.documentID
		}
		return []diff.Change{{
			Field:      "document",
			FieldPath:  "",
			OldValue:   oldValue,
			ChangeType: diff.ChangeRemoved,
		}}

	case models.ActionCreate:
		return createChanges(after, ident, idFields)

	default:
		return diff.Diff(diff.FromMap(before), diff.FromMap(after), "")
	}
}

// createChanges synthesizes the minimal change list for a newly created
// document from its identifying fields.
func createChanges(after map[string]any, ident docIdentity, idFields []string) []diff.Change {
	var changes []diff.Change
	for _, field := range idFields {
		v, ok := after[field]
		if !ok || v == nil {
			continue
		}
		changes = append(changes, diff.Change{
			Field:      field,
			FieldPath:  field,
			NewValue:   diff.FromAny(v).Interface(),
			ChangeType: diff.ChangeAdded,
		})
	}
	if len(changes) > 0 {
		return changes
	}

	// No after snapshot could be loaded; record what identity we have.
	if ident.jobNo != "" {
		changes = append(changes,
			diff.Change{Field: "job_no", FieldPath: "job_no", NewValue: ident.jobNo, ChangeType: diff.ChangeAdded},
			diff.Change{Field: "year", FieldPath: "year", NewValue: ident.year, ChangeType: diff.ChangeAdded},
		)
	} else {
		changes = append(changes, diff.Change{
			Field:      "document",
			FieldPath:  "",
			NewValue:   ident.documentID,
			ChangeType: diff.ChangeAdded,
		})
	}
	return changes
}

func documentIDFrom(snapshot map[string]any) string {
	for _, key := range []string{"id", "_id", "uuid"} {
		if v, ok := snapshot[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func hintOrHeader(c *gin.Context, key, header string) string {
	if v := c.GetString(key); v != "" {
		return v
	}
	return c.GetHeader(header)
}
