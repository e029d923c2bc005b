package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserLockState(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &User{}

	require.False(t, user.IsLocked(now))

	user.Lock(now, time.Hour)
	require.True(t, user.IsLocked(now))
	require.True(t, user.IsLocked(now.Add(59*time.Minute)))

	// The lock clears implicitly once expiry is in the past.
	require.False(t, user.IsLocked(now.Add(61*time.Minute)))

	user.FailedOTPAttempts = 9
	user.ResetOTPFailures()
	require.Zero(t, user.FailedOTPAttempts)
	require.Nil(t, user.AccountLockedUntil)
}

func TestUserSoftDeleteAppliesLongLock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &User{}

	user.SoftDelete(now)
	require.True(t, user.IsDeleted)
	require.NotNil(t, user.DeletedAt)
	// Still locked decades later; time never unlocks a deleted account.
	require.True(t, user.IsLocked(now.Add(50*365*24*time.Hour)))

	user.Restore()
	require.False(t, user.IsDeleted)
	require.Nil(t, user.DeletedAt)
	require.False(t, user.IsLocked(now))
}

func TestOtpVerificationHelpers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	otp := &OtpVerification{
		ExpiresAt:   now.Add(5 * time.Minute),
		Attempts:    4,
		MaxAttempts: 5,
	}

	require.False(t, otp.Expired(now))
	require.True(t, otp.Expired(now.Add(6*time.Minute)))
	require.False(t, otp.AttemptsExhausted())

	otp.Attempts = 5
	require.True(t, otp.AttemptsExhausted())
}

func TestRefreshTokenExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := &RefreshToken{ExpiresAt: now.Add(time.Hour)}

	require.False(t, token.Expired(now))
	require.True(t, token.Expired(now.Add(2*time.Hour)))
}
