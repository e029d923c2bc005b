package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/cache"
	testutil "github.com/zentrolabs/zentro/internal/database/testutil"
	"github.com/zentrolabs/zentro/internal/models"
)

func seedMaintenanceData(t *testing.T, db *gorm.DB, now time.Time) {
	t.Helper()

	records := []models.OtpVerification{
		{
			Email:       "expired@example.com",
			Purpose:     models.PurposeEmailVerification,
			OTPHash:     "hash",
			MaxAttempts: 5,
			ExpiresAt:   now.Add(-time.Hour),
			LastSentAt:  now.Add(-2 * time.Hour),
		},
		{
			Email:       "active@example.com",
			Purpose:     models.PurposeEmailVerification,
			OTPHash:     "hash",
			MaxAttempts: 5,
			ExpiresAt:   now.Add(time.Hour),
			LastSentAt:  now,
		},
	}
	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
	}

	tokens := []models.RefreshToken{
		{UserID: 1, TokenHash: "expired-token", ExpiresAt: now.Add(-time.Hour)},
		{UserID: 1, TokenHash: "active-token", ExpiresAt: now.Add(time.Hour)},
	}
	for i := range tokens {
		require.NoError(t, db.Create(&tokens[i]).Error)
	}

	entries := []models.CacheEntry{
		{Key: "stale", Value: "v", ExpiresAt: now.Add(-time.Minute)},
		{Key: "fresh", Value: "v", ExpiresAt: now.Add(time.Minute)},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	otp, err := iauth.NewOTPService(db, iauth.OTPConfig{Clock: clock})
	require.NoError(t, err)

	refresh, err := iauth.NewRefreshStore(db, iauth.RefreshStoreConfig{Clock: clock})
	require.NoError(t, err)

	dbCache := cache.NewDatabaseStore(db, clock)

	seedMaintenanceData(t, db, now)

	cleaner := NewCleaner(otp, refresh, dbCache)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	require.Equal(t, int64(1), countRows(t, db, &models.OtpVerification{}))
	require.Equal(t, int64(1), countRows(t, db, &models.RefreshToken{}))
	require.Equal(t, int64(1), countRows(t, db, &models.CacheEntry{}))
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	otp, err := iauth.NewOTPService(db, iauth.OTPConfig{})
	require.NoError(t, err)

	refresh, err := iauth.NewRefreshStore(db, iauth.RefreshStoreConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(otp, refresh, cache.NewDatabaseStore(db, nil))
	require.NoError(t, cleaner.Start())

	stop := cleaner.Stop()
	select {
	case <-stop.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerRunOnceWithNilDependencies(t *testing.T) {
	cleaner := NewCleaner(nil, nil, nil)
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
