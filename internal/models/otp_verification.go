package models

import "time"

// OTPPurpose distinguishes the workflows a one-time code can serve.
type OTPPurpose string

const (
	PurposeEmailVerification OTPPurpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     OTPPurpose = "PASSWORD_RESET"
)

// OtpVerification stores the hash of an active one-time code together with
// its attempt and resend accounting. At most one live row exists per
// (identity, purpose) pair; generation replaces any prior row.
type OtpVerification struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// UserID is nullable: password-reset codes may be issued before a user
	// record is resolved by id.
	UserID  *uint      `gorm:"index" json:"-"`
	Email   string     `gorm:"size:100;not null;index:idx_otp_email_purpose" json:"email"`
	Purpose OTPPurpose `gorm:"size:30;not null;index:idx_otp_email_purpose" json:"purpose"`

	OTPHash string `gorm:"size:255;not null" json:"-"`

	Attempts    int `gorm:"not null;default:0" json:"-"`
	MaxAttempts int `gorm:"not null" json:"-"`

	ExpiresAt   time.Time `gorm:"index;not null" json:"-"`
	LastSentAt  time.Time `gorm:"not null" json:"-"`
	ResendCount int       `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"-"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (o *OtpVerification) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// AttemptsExhausted reports whether the per-record attempt ceiling is reached.
func (o *OtpVerification) AttemptsExhausted() bool {
	return o.Attempts >= o.MaxAttempts
}
