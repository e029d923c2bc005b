package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentrolabs/zentro/pkg/errors"
)

func TestGetAndUpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair := f.signupVerified(t, "a@x.com", "Sup3rSecret!")

	profile, err := f.users.GetProfile(ctx, pair.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test User", profile.FullName())

	updated, err := f.users.UpdateProfile(ctx, pair.User.ID, UpdateProfileInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		PhoneNumber: "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.FullName())
	assert.Equal(t, "+15551234567", updated.PhoneNumber)

	// empty phone number leaves the stored value alone
	updated, err = f.users.UpdateProfile(ctx, pair.User.ID, UpdateProfileInput{
		FirstName: "Ada",
		LastName:  "Byron",
	})
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", updated.PhoneNumber)

	_, err = f.users.GetProfile(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestChangeUsernameCooldown(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair := f.signupVerified(t, "a@x.com", "Sup3rSecret!")

	updated, err := f.users.ChangeUsername(ctx, pair.User.ID, "fresh_handle")
	require.NoError(t, err)
	assert.Equal(t, "fresh_handle", updated.Username)

	// a second change inside the cooldown is refused
	_, err = f.users.ChangeUsername(ctx, pair.User.ID, "another_handle")
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrBadRequest.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "days")

	f.advance(31 * 24 * time.Hour)
	updated, err = f.users.ChangeUsername(ctx, pair.User.ID, "another_handle")
	require.NoError(t, err)
	assert.Equal(t, "another_handle", updated.Username)
}

func TestChangeUsernameUniqueness(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.signupVerified(t, "first@x.com", "Sup3rSecret!")
	second := f.signupVerified(t, "second@x.com", "Sup3rSecret!")

	_, err := f.users.ChangeUsername(ctx, second.User.ID, "first")
	assert.ErrorIs(t, err, errors.ErrUsernameTaken)

	// keeping your own username is not a collision
	updated, err := f.users.ChangeUsername(ctx, second.User.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Username)
}

func TestDeleteAccountIsSoft(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair := f.signupVerified(t, "a@x.com", "Sup3rSecret!")

	require.NoError(t, f.users.DeleteAccount(ctx, pair.User.ID))

	profile, err := f.users.GetProfile(ctx, pair.User.ID)
	require.NoError(t, err, "the row survives a soft delete")
	assert.True(t, profile.IsDeleted)
	require.NotNil(t, profile.DeletedAt)
	require.NotNil(t, profile.AccountLockedUntil)
	assert.True(t, profile.AccountLockedUntil.After(f.now.Add(50*365*24*time.Hour)))

	err = f.users.DeleteAccount(ctx, pair.User.ID)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrBadRequest.Code, appErr.Code)
}
