package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/diff"
	"github.com/cargoflow/audittrail/internal/models"
)

var (
	ErrInvalidDateRange   = errors.New("fromDate must not be after toDate")
	ErrInvalidDate        = errors.New("dates must be in YYYY-MM-DD format")
	ErrInvalidGranularity = errors.New("granularity must be one of hour, day, week, month")
	ErrMissingFieldPath   = errors.New("field_path is required")
	ErrMissingDocument    = errors.New("a document id or job_no and year are required")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// AuditQuery captures the filters accepted by the audit read endpoints.
// Zero values mean "no filter".
type AuditQuery struct {
	JobNo         string
	Year          string
	DocumentID    string
	DocumentType  string
	Action        string
	Username      string // case-insensitive; substring unless UsernameExact
	UsernameExact bool
	FieldPath     string // substring match against recorded field paths
	IPAddress     string // substring
	FromDate      string // YYYY-MM-DD
	ToDate        string // YYYY-MM-DD
	Page          int
	Limit         int
}

// Page is the standard paginated response envelope.
type Page struct {
	Items       any   `json:"items"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// QueryService is the read-only surface over the audit log.
type QueryService struct {
	db *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

// List returns audit records matching the query, newest first, paginated.
func (s *QueryService) List(q AuditQuery) (*Page, error) {
	tx, err := s.applyFilters(q, false)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	page, limit := normalizePage(q.Page, q.Limit)
	var records []models.AuditRecord
	if err := tx.Order("timestamp desc, id desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	return buildPage(records, page, limit, total), nil
}

// ActionCount is one slice of the per-action breakdown.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// ActorCount is one entry of the top-actors ranking.
type ActorCount struct {
	ActorName string `json:"actor_name"`
	Count     int64  `json:"count"`
}

// BucketCount is one point of the time-bucketed activity series.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// Stats aggregates audit activity over a date range.
type Stats struct {
	From              time.Time     `json:"from"`
	To                time.Time     `json:"to"`
	Granularity       string        `json:"granularity"`
	TotalActions      int64         `json:"total_actions"`
	DistinctActors    int64         `json:"distinct_actors"`
	DistinctDocuments int64         `json:"distinct_documents"`
	ActionBreakdown   []ActionCount `json:"action_breakdown"`
	TopActors         []ActorCount  `json:"top_actors"`
	Activity          []BucketCount `json:"activity"`
}

var bucketFormats = map[string]string{
	"hour":  "%Y-%m-%dT%H:00",
	"day":   "%Y-%m-%d",
	"week":  "%Y-W%W",
	"month": "%Y-%m",
}

// GetStats computes aggregate statistics for a date range. An unspecified
// range defaults to the current calendar day.
func (s *QueryService) GetStats(fromDate, toDate, granularity string) (*Stats, error) {
	if granularity == "" {
		granularity = "day"
	}
	format, ok := bucketFormats[granularity]
	if !ok {
		return nil, ErrInvalidGranularity
	}

	from, to, err := resolveDateRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	ranged := func() *gorm.DB {
		return s.db.Model(&models.AuditRecord{}).
			Where("timestamp >= ? AND timestamp < ?", from, to)
	}

	stats := &Stats{From: from, To: to, Granularity: granularity}
	if err := ranged().Count(&stats.TotalActions).Error; err != nil {
		return nil, err
	}
	if err := ranged().Distinct("actor_id").Count(&stats.DistinctActors).Error; err != nil {
		return nil, err
	}
	if err := ranged().Where("document_id <> ''").
		Distinct("document_id").Count(&stats.DistinctDocuments).Error; err != nil {
		return nil, err
	}
	if err := ranged().Select("action, count(*) as count").
		Group("action").Order("count desc").
		Scan(&stats.ActionBreakdown).Error; err != nil {
		return nil, err
	}
	if err := ranged().Select("actor_name, count(*) as count").
		Group("actor_name").Order("count desc").Limit(10).
		Scan(&stats.TopActors).Error; err != nil {
		return nil, err
	}
	if err := ranged().
		Select(fmt.Sprintf("strftime('%s', timestamp) as bucket, count(*) as count", format)).
		Group("bucket").Order("bucket").
		Scan(&stats.Activity).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// FieldChange is one recorded change to a field, with the record context a
// reviewer needs to attribute it.
type FieldChange struct {
	RecordUUID string             `json:"record_uuid"`
	Timestamp  time.Time          `json:"timestamp"`
	ActorName  string             `json:"actor_name"`
	Action     models.AuditAction `json:"action"`
	diff.Change
}

// GetFieldHistory returns every change ever recorded for one exact field
// path on one document, newest first, paginated over the matching records.
func (s *QueryService) GetFieldHistory(q AuditQuery) (*Page, error) {
	if q.FieldPath == "" {
		return nil, ErrMissingFieldPath
	}
	if q.DocumentID == "" && (q.JobNo == "" || q.Year == "") {
		return nil, ErrMissingDocument
	}

	tx := s.db.Model(&models.AuditRecord{})
	if q.DocumentID != "" {
		tx = tx.Where("document_id = ?", q.DocumentID)
	} else {
		tx = tx.Where("job_no = ? AND year = ?", q.JobNo, q.Year)
	}
	tx = tx.Where(
		"EXISTS (SELECT 1 FROM json_each(audit_records.changes) WHERE json_extract(json_each.value, '$.fieldPath') = ?)",
		q.FieldPath,
	)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	page, limit := normalizePage(q.Page, q.Limit)
	var records []models.AuditRecord
	if err := tx.Order("timestamp desc, id desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	items := make([]FieldChange, 0, len(records))
	for _, rec := range records {
		changes, err := rec.GetChanges()
		if err != nil {
			continue
		}
		for _, ch := range changes {
			if ch.FieldPath != q.FieldPath {
				continue
			}
			items = append(items, FieldChange{
				RecordUUID: rec.UUID,
				Timestamp:  rec.Timestamp,
				ActorName:  rec.ActorName,
				Action:     rec.Action,
				Change:     ch,
			})
		}
	}

	return buildPage(items, page, limit, total), nil
}

func (s *QueryService) applyFilters(q AuditQuery, defaultRange bool) (*gorm.DB, error) {
	tx := s.db.Model(&models.AuditRecord{})

	if q.JobNo != "" {
		tx = tx.Where("job_no = ?", q.JobNo)
	}
	if q.Year != "" {
		tx = tx.Where("year = ?", q.Year)
	}
	if q.DocumentID != "" {
		tx = tx.Where("document_id = ?", q.DocumentID)
	}
	if q.DocumentType != "" {
		tx = tx.Where("document_type = ?", q.DocumentType)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.Username != "" {
		if q.UsernameExact {
			tx = tx.Where("lower(actor_name) = lower(?)", q.Username)
		} else {
			tx = tx.Where("lower(actor_name) LIKE lower(?)", "%"+q.Username+"%")
		}
	}
	if q.IPAddress != "" {
		tx = tx.Where("ip_address LIKE ?", "%"+q.IPAddress+"%")
	}
	if q.FieldPath != "" {
		tx = tx.Where(
			"EXISTS (SELECT 1 FROM json_each(audit_records.changes) WHERE json_extract(json_each.value, '$.fieldPath') LIKE ?)",
			"%"+q.FieldPath+"%",
		)
	}

	if q.FromDate != "" || q.ToDate != "" || defaultRange {
		from, to, err := resolveDateRange(q.FromDate, q.ToDate)
		if err != nil {
			return nil, err
		}
		tx = tx.Where("timestamp >= ? AND timestamp < ?", from, to)
	}

	return tx, nil
}

// resolveDateRange turns a pair of YYYY-MM-DD strings into a half-open
// [from, to) interval of server-local midnights. Both dates are inclusive:
// the end bound is the midnight after toDate, so fromDate == toDate covers
// that entire calendar day. Unspecified bounds default to today.
func resolveDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	today := time.Now().Local()
	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
	}

	from := startOfDay(today)
	to := from
	if fromStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", fromStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDate
		}
		from = parsed
		to = parsed
	}
	if toStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", toStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDate
		}
		to = parsed
		if fromStr == "" {
			from = parsed
		}
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}

	return from, to.AddDate(0, 0, 1), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func buildPage(items any, page, limit int, total int64) *Page {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Page{
		Items:       items,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1 && total > 0,
	}
}
