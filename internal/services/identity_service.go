package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/cargoflow/audittrail/internal/logger"
	"github.com/cargoflow/audittrail/internal/metrics"
	"github.com/cargoflow/audittrail/internal/models"
)

// SentinelActorID is returned for empty or unidentified usernames. It is
// never written to the mapping store.
const SentinelActorID = "UNKNOWN_ACTOR"

const identityCacheSize = 1024

// IdentityService maps display usernames to stable opaque actor ids,
// creating a mapping the first time a username is seen.
type IdentityService struct {
	db    *gorm.DB
	cache *lru.Cache[string, string]
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	cache, _ := lru.New[string, string](identityCacheSize)
	return &IdentityService{db: db, cache: cache}
}

// Resolve returns the stable actor id for a username. It never returns an
// error: when the mapping store is unreachable it degrades to a
// deterministic function of the username so the caller always gets the same
// string for the same input.
func (s *IdentityService) Resolve(username string) string {
	if username == "" || username == "unknown" {
		return SentinelActorID
	}

	if id, ok := s.cache.Get(username); ok {
		s.touch(username)
		return id
	}

	var mapping models.IdentityMapping
	err := s.db.Where("username = ?", username).First(&mapping).Error
	if err == nil {
		s.touch(username)
		s.cache.Add(username, mapping.ActorID)
		return mapping.ActorID
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Log().WithError(err).Warn("identity store lookup failed, using fallback actor id")
		metrics.IncIdentityFallback()
		return FallbackActorID(username)
	}

	// First sight: create a mapping. Two concurrent first sights of the
	// same username race on the unique index; the loser re-reads the
	// winner's row instead of erroring.
	now := time.Now().UTC()
	mapping = models.IdentityMapping{
		Username:   username,
		ActorID:    generateActorID(username, now),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := s.db.Create(&mapping).Error; err != nil {
		var winner models.IdentityMapping
		if rerr := s.db.Where("username = ?", username).First(&winner).Error; rerr == nil {
			s.cache.Add(username, winner.ActorID)
			return winner.ActorID
		}
		logger.Log().WithError(err).Warn("identity mapping create failed, using fallback actor id")
		metrics.IncIdentityFallback()
		return FallbackActorID(username)
	}

	s.cache.Add(username, mapping.ActorID)
	return mapping.ActorID
}

// List returns all known identity mappings, most recently used first.
func (s *IdentityService) List() ([]models.IdentityMapping, error) {
	var mappings []models.IdentityMapping
	if err := s.db.Order("last_used_at desc").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// FindByActorID returns the mapping for an actor id.
func (s *IdentityService) FindByActorID(actorID string) (*models.IdentityMapping, error) {
	var mapping models.IdentityMapping
	if err := s.db.Where("actor_id = ?", actorID).First(&mapping).Error; err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (s *IdentityService) touch(username string) {
	if err := s.db.Model(&models.IdentityMapping{}).
		Where("username = ?", username).
		Update("last_used_at", time.Now().UTC()).Error; err != nil {
		logger.Log().WithError(err).Debug("identity last_used_at touch failed")
	}
}

// generateActorID derives an opaque id from the username, a time component
// and a short hash. Collision-resistant enough for human-scale usage; not a
// security credential.
func generateActorID(username string, now time.Time) string {
	sum := sha256.Sum256([]byte(username + "|" + strconv.FormatInt(now.UnixNano(), 10)))
	return "ACT-" + normalizeUsername(username) + "-" +
		strconv.FormatInt(now.UnixMilli(), 36) + "-" + hex.EncodeToString(sum[:3])
}

// FallbackActorID is the pure degraded mapping used when the store is
// unavailable: uppercase with non-alphanumerics stripped.
func FallbackActorID(username string) string {
	return "ACT-" + normalizeUsername(username)
}

func normalizeUsername(username string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(username) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
