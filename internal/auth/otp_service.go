package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zentrolabs/zentro/internal/models"
	"github.com/zentrolabs/zentro/pkg/crypto"
	"github.com/zentrolabs/zentro/pkg/logger"
	"github.com/zentrolabs/zentro/pkg/metrics"
)

// Default OTP policy values.
const (
	DefaultOTPLength      = 6
	DefaultOTPExpiry      = 5 * time.Minute
	DefaultOTPMaxAttempts = 5
	DefaultOTPCooldown    = 60 * time.Second
	DefaultOTPMaxPerHour  = 3
	DefaultOTPWindow      = time.Hour
	DefaultOTPMaxResends  = 5
)

var (
	// ErrOTPNotFound is returned when no live code exists for the identity,
	// either because none was issued or a prior validation consumed it.
	ErrOTPNotFound = errors.New("otp: no active code")
	// ErrOTPInvalid is returned when the candidate does not match the live code.
	ErrOTPInvalid = errors.New("otp: invalid code")
	// ErrOTPExpired is returned when the live code is past its expiry.
	ErrOTPExpired = errors.New("otp: expired")
	// ErrOTPAttemptsExhausted is returned once the per-record attempt ceiling is reached.
	ErrOTPAttemptsExhausted = errors.New("otp: max attempts exceeded")
)

// RateLimitError reports a refused generation together with an optional
// retry-after hint for cooldown violations.
type RateLimitError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Reason }

// OTPConfig defines tunable policy for the OTP service.
type OTPConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
	// Cooldown is the minimum wait between consecutive sends for one identity.
	Cooldown time.Duration
	// MaxPerWindow caps generations per identity within Window.
	MaxPerWindow int
	Window       time.Duration
	// MaxResends caps resends counted against the live record within Window.
	MaxResends int
	Clock      func() time.Time
}

// OTPService generates, stores, rate-limits and validates one-time codes.
// Only a one-way hash of each code is persisted; the plaintext is handed to
// the caller exactly once for delivery.
type OTPService struct {
	db           *gorm.DB
	length       int
	expiry       time.Duration
	maxAttempts  int
	cooldown     time.Duration
	maxPerWindow int
	window       time.Duration
	maxResends   int
	now          func() time.Time
	log          *zap.Logger
}

// NewOTPService builds an OTP service with sane defaults.
func NewOTPService(db *gorm.DB, cfg OTPConfig) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}

	svc := &OTPService{
		db:           db,
		length:       cfg.Length,
		expiry:       cfg.Expiry,
		maxAttempts:  cfg.MaxAttempts,
		cooldown:     cfg.Cooldown,
		maxPerWindow: cfg.MaxPerWindow,
		window:       cfg.Window,
		maxResends:   cfg.MaxResends,
		now:          cfg.Clock,
		log:          logger.WithModule("otp"),
	}

	if svc.length <= 0 {
		svc.length = DefaultOTPLength
	}
	if svc.expiry <= 0 {
		svc.expiry = DefaultOTPExpiry
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = DefaultOTPMaxAttempts
	}
	if svc.cooldown <= 0 {
		svc.cooldown = DefaultOTPCooldown
	}
	if svc.maxPerWindow <= 0 {
		svc.maxPerWindow = DefaultOTPMaxPerHour
	}
	if svc.window <= 0 {
		svc.window = DefaultOTPWindow
	}
	if svc.maxResends <= 0 {
		svc.maxResends = DefaultOTPMaxResends
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	return svc, nil
}

// Generate issues a fresh code for the identity and purpose, replacing any
// prior live record. The rate-limit, cooldown and resend checks are evaluated
// against a single locked snapshot of the most recent record so concurrent
// calls cannot both observe an idle cooldown.
func (s *OTPService) Generate(ctx context.Context, userID *uint, email string, purpose models.OTPPurpose) (string, error) {
	code, err := crypto.RandomNumericCode(s.length)
	if err != nil {
		return "", fmt.Errorf("otp service: generate code: %w", err)
	}

	hash, err := crypto.HashOTP(code)
	if err != nil {
		return "", fmt.Errorf("otp service: hash code: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		// All three generation checks read the same locked snapshot of the
		// most recent record, so two concurrent calls cannot both observe an
		// idle cooldown. The record carries the send count for the rolling
		// window; generation replaces rows, so row counts cannot.
		resend := 0
		var prior models.OtpVerification
		err := lockForUpdate(tx).
			Where("email = ? AND purpose = ?", email, purpose).
			Order("created_at DESC").
			Take(&prior).Error
		switch {
		case err == nil:
			since := now.Sub(prior.LastSentAt)
			if since < s.window {
				sends := prior.ResendCount + 1
				if sends >= s.maxPerWindow {
					return &RateLimitError{Reason: "Too many OTP requests. Please try again later"}
				}
			}
			if since < s.cooldown {
				remaining := s.cooldown - since
				seconds := int((remaining + time.Second - 1) / time.Second)
				return &RateLimitError{
					Reason:     fmt.Sprintf("Please wait %d seconds before requesting a new OTP", seconds),
					RetryAfter: remaining,
				}
			}
			// The resend counter carries over within the rolling window and
			// resets once a full window has elapsed since the last send.
			if since < s.window {
				if prior.ResendCount >= s.maxResends {
					return &RateLimitError{Reason: "Maximum OTP resend attempts exceeded. Please try again in 1 hour"}
				}
				resend = prior.ResendCount + 1
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first code for this identity and purpose
		default:
			return fmt.Errorf("otp service: load prior record: %w", err)
		}

		if userID != nil {
			if err := tx.Where("user_id = ? AND purpose = ?", *userID, purpose).
				Delete(&models.OtpVerification{}).Error; err != nil {
				return fmt.Errorf("otp service: delete prior by user: %w", err)
			}
		}
		if err := tx.Where("email = ? AND purpose = ?", email, purpose).
			Delete(&models.OtpVerification{}).Error; err != nil {
			return fmt.Errorf("otp service: delete prior by email: %w", err)
		}

		record := &models.OtpVerification{
			UserID:      userID,
			Email:       email,
			Purpose:     purpose,
			OTPHash:     hash,
			Attempts:    0,
			MaxAttempts: s.maxAttempts,
			ExpiresAt:   now.Add(s.expiry),
			LastSentAt:  now,
			ResendCount: resend,
			CreatedAt:   now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("otp service: create record: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	metrics.OTPGenerated.WithLabelValues(string(purpose)).Inc()
	s.log.Info("otp generated",
		zap.String("email", email),
		zap.String("purpose", string(purpose)),
	)

	return code, nil
}

// Validate checks a candidate code against the live record for the identity
// and purpose. Expiry is checked strictly before the attempt increment so a
// dead record never accumulates attempts; a surviving record's counter is
// incremented unconditionally before the hash comparison, making attempt
// accounting monotone even when the candidate eventually matches.
func (s *OTPService) Validate(ctx context.Context, userID *uint, email string, purpose models.OTPPurpose, code string) error {
	// Rejections are carried out of the callback in outcome rather than
	// returned from it: a returned error would roll the transaction back and
	// discard the attempt increment that the rejection must persist.
	var outcome error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		query := lockForUpdate(tx)
		if userID != nil {
			query = query.Where("user_id = ? AND purpose = ?", *userID, purpose)
		} else {
			query = query.Where("email = ? AND purpose = ?", email, purpose)
		}

		var record models.OtpVerification
		err := query.Order("created_at DESC").Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = ErrOTPNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("otp service: load record: %w", err)
		}

		if record.Expired(now) {
			outcome = ErrOTPExpired
			return nil
		}
		if record.AttemptsExhausted() {
			outcome = ErrOTPAttemptsExhausted
			return nil
		}

		if err := tx.Model(&record).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
			return fmt.Errorf("otp service: increment attempts: %w", err)
		}

		if !crypto.VerifyOTP(record.OTPHash, code) {
			outcome = ErrOTPInvalid
			return nil
		}

		// A code validates exactly once.
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("otp service: consume record: %w", err)
		}
		return nil
	})
	if err == nil {
		err = outcome
	}

	switch {
	case err == nil:
		metrics.OTPValidations.WithLabelValues("success").Inc()
	case errors.Is(err, ErrOTPExpired):
		metrics.OTPValidations.WithLabelValues("expired").Inc()
	case errors.Is(err, ErrOTPAttemptsExhausted):
		metrics.OTPValidations.WithLabelValues("exhausted").Inc()
	default:
		metrics.OTPValidations.WithLabelValues("invalid").Inc()
	}

	return err
}

// SweepExpired bulk-deletes records past expiry. Validation checks expiry on
// its own, so correctness never depends on sweep timing; the sweep only keeps
// the table small.
func (s *OTPService) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.OtpVerification{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp service: sweep expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// lockForUpdate applies row-level locking on databases that support it.
// SQLite serialises writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
