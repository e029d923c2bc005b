package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zentrolabs/zentro/internal/models"
)

// DatabaseStore implements Store on the cache_entries table. It exists for
// deployments without Redis; expiry is checked lazily on read and reclaimed
// by SweepExpired.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore builds a database-backed store. clock may be nil.
func NewDatabaseStore(db *gorm.DB, clock func() time.Time) *DatabaseStore {
	if clock == nil {
		clock = time.Now
	}
	return &DatabaseStore{db: db, now: clock}
}

func (s *DatabaseStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Take(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache: db get: %w", err)
	}

	if !entry.ExpiresAt.IsZero() && !entry.ExpiresAt.After(s.now()) {
		_ = s.db.WithContext(ctx).Delete(&models.CacheEntry{}, "key = ?", key).Error
		return "", ErrCacheMiss
	}
	return entry.Value, nil
}

func (s *DatabaseStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache: db set: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Delete(&models.CacheEntry{}, "key IN ?", keys).Error; err != nil {
		return fmt.Errorf("cache: db delete: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("cache: db ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op; the underlying connection is owned by the caller.
func (s *DatabaseStore) Close() error { return nil }

// SweepExpired removes entries past expiry and returns the count.
func (s *DatabaseStore) SweepExpired(ctx context.Context) (int64, error) {
	// zero expiry means no expiry
	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("cache: db sweep: %w", result.Error)
	}
	return result.RowsAffected, nil
}
