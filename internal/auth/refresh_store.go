package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/internal/cache"
	"github.com/zentrolabs/zentro/internal/models"
	"github.com/zentrolabs/zentro/pkg/crypto"
	"github.com/zentrolabs/zentro/pkg/logger"
	"github.com/zentrolabs/zentro/pkg/metrics"
)

var (
	// ErrRefreshTokenNotFound is returned when no stored token matches the digest.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenExpired is returned when the matching token is past expiry.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

const refreshCachePrefix = "rt:"

// RefreshStoreConfig configures the refresh token store. Cache is optional;
// when set, token digests are mirrored there for fast lookups.
type RefreshStoreConfig struct {
	Cache cache.Store
	Clock func() time.Time
}

// RefreshStore persists refresh token digests. The plaintext token is never
// stored; lookups hash the presented token and match on the digest. The
// database row is authoritative, the cache is a best-effort mirror.
type RefreshStore struct {
	db    *gorm.DB
	cache cache.Store
	now   func() time.Time
	log   *zap.Logger
}

// NewRefreshStore builds a refresh token store.
func NewRefreshStore(db *gorm.DB, cfg RefreshStoreConfig) (*RefreshStore, error) {
	if db == nil {
		return nil, errors.New("refresh store: db is required")
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &RefreshStore{
		db:    db,
		cache: cfg.Cache,
		now:   now,
		log:   logger.WithModule("refresh_store"),
	}, nil
}

// Save records a freshly minted token for the user.
func (s *RefreshStore) Save(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	hash := crypto.HashToken(token)

	record := &models.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("refresh store: save: %w", err)
	}

	metrics.ActiveRefreshTokens.Inc()
	s.cacheSet(ctx, hash, userID, expiresAt)
	return nil
}

// Find resolves a presented token to its stored record. The cache is
// consulted first; delete paths purge their keys, so a live cache entry is a
// valid token. An expired record is deleted on sight and reported as expired.
func (s *RefreshStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	hash := crypto.HashToken(token)

	if record, ok := s.cacheGet(ctx, hash); ok {
		return record, nil
	}

	var record models.RefreshToken
	err := s.db.WithContext(ctx).Take(&record, "token_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh store: find: %w", err)
	}

	if record.Expired(s.now()) {
		if err := s.deleteByHashes(ctx, []string{hash}); err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenExpired
	}

	s.cacheSet(ctx, hash, record.UserID, record.ExpiresAt)
	return &record, nil
}

// Delete removes a single token by its plaintext form.
func (s *RefreshStore) Delete(ctx context.Context, token string) error {
	return s.deleteByHashes(ctx, []string{crypto.HashToken(token)})
}

// DeleteForUser revokes every token belonging to the user. Logout and
// password reset both funnel through here.
func (s *RefreshStore) DeleteForUser(ctx context.Context, userID uint) error {
	var hashes []string
	if err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Pluck("token_hash", &hashes).Error; err != nil {
		return fmt.Errorf("refresh store: list for user: %w", err)
	}
	if len(hashes) == 0 {
		return nil
	}
	return s.deleteByHashes(ctx, hashes)
}

// DeleteExpired bulk-removes tokens past expiry and returns the count.
func (s *RefreshStore) DeleteExpired(ctx context.Context) (int64, error) {
	var hashes []string
	if err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("expires_at < ?", s.now()).
		Pluck("token_hash", &hashes).Error; err != nil {
		return 0, fmt.Errorf("refresh store: list expired: %w", err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}
	if err := s.deleteByHashes(ctx, hashes); err != nil {
		return 0, err
	}
	return int64(len(hashes)), nil
}

func (s *RefreshStore) deleteByHashes(ctx context.Context, hashes []string) error {
	result := s.db.WithContext(ctx).
		Delete(&models.RefreshToken{}, "token_hash IN ?", hashes)
	if result.Error != nil {
		return fmt.Errorf("refresh store: delete: %w", result.Error)
	}
	metrics.ActiveRefreshTokens.Sub(float64(result.RowsAffected))

	if s.cache != nil {
		keys := make([]string, len(hashes))
		for i, h := range hashes {
			keys[i] = refreshCachePrefix + h
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.log.Warn("cache purge failed", zap.Error(err))
		}
	}
	return nil
}

// Cached entries carry "<userID>:<expiresAtUnix>" so a hit can be served
// without touching the database.
func (s *RefreshStore) cacheSet(ctx context.Context, hash string, userID uint, expiresAt time.Time) {
	if s.cache == nil {
		return
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	value := strconv.FormatUint(uint64(userID), 10) + ":" + strconv.FormatInt(expiresAt.Unix(), 10)
	if err := s.cache.Set(ctx, refreshCachePrefix+hash, value, ttl); err != nil {
		s.log.Warn("cache mirror failed", zap.Error(err))
	}
}

func (s *RefreshStore) cacheGet(ctx context.Context, hash string) (*models.RefreshToken, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, err := s.cache.Get(ctx, refreshCachePrefix+hash)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache lookup failed", zap.Error(err))
		}
		return nil, false
	}

	userPart, expiryPart, found := strings.Cut(value, ":")
	if !found {
		return nil, false
	}
	userID, err := strconv.ParseUint(userPart, 10, 64)
	if err != nil {
		return nil, false
	}
	expiresAt, err := strconv.ParseInt(expiryPart, 10, 64)
	if err != nil {
		return nil, false
	}

	record := &models.RefreshToken{
		UserID:    uint(userID),
		TokenHash: hash,
		ExpiresAt: time.Unix(expiresAt, 0),
	}
	if record.Expired(s.now()) {
		return nil, false
	}
	return record, true
}
