package models

import (
	"time"
)

// Role enumerates the supported user roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// SoftDeleteLockDuration is the effectively permanent lock applied to
// soft-deleted accounts so they cannot log in while awaiting purge.
const SoftDeleteLockDuration = 100 * 365 * 24 * time.Hour

// User describes a registered shopper or administrator together with the
// credential and lock state consulted by every authentication workflow.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	PublicID string `gorm:"uniqueIndex;size:50;not null" json:"id"`

	FirstName string `gorm:"size:50;not null" json:"first_name"`
	LastName  string `gorm:"size:50;not null" json:"last_name"`
	Username  string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;size:100;not null" json:"email"`

	PasswordHash string `gorm:"size:255;not null" json:"-"`
	PhoneNumber  string `gorm:"size:20" json:"phone_number,omitempty"`

	EmailVerified bool `gorm:"not null;default:false;index" json:"email_verified"`
	Role          Role `gorm:"size:20;not null;default:USER" json:"role"`

	FailedOTPAttempts  int        `gorm:"not null;default:0" json:"-"`
	AccountLockedUntil *time.Time `json:"-"`

	UsernameChangedAt *time.Time `json:"-"`

	IsDeleted bool       `gorm:"not null;default:false;index" json:"-"`
	DeletedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the user's first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsLocked reports whether the account lock is active at the given instant.
// A lock expiry in the past means the account is unlocked; no sweeper is needed.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}

// Lock places the account in the locked state for the supplied duration.
func (u *User) Lock(now time.Time, d time.Duration) {
	until := now.Add(d)
	u.AccountLockedUntil = &until
}

// ResetOTPFailures clears the cumulative failed-OTP counter and any lock.
func (u *User) ResetOTPFailures() {
	u.FailedOTPAttempts = 0
	u.AccountLockedUntil = nil
}

// SoftDelete flags the user deleted and applies the long-duration lock.
// The lock blocks login without disturbing other fields so the account can
// be restored within the grace period.
func (u *User) SoftDelete(now time.Time) {
	u.IsDeleted = true
	u.DeletedAt = &now
	u.Lock(now, SoftDeleteLockDuration)
}

// Restore reverses a soft delete within the grace period.
func (u *User) Restore() {
	u.IsDeleted = false
	u.DeletedAt = nil
	u.AccountLockedUntil = nil
}
