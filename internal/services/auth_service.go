// Package services contains the business workflows composed from the auth,
// cache and notification building blocks.
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/models"
	"github.com/zentrolabs/zentro/internal/notifications"
	"github.com/zentrolabs/zentro/pkg/crypto"
	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/logger"
	"github.com/zentrolabs/zentro/pkg/metrics"
)

// Account lock policy defaults.
const (
	DefaultMaxFailedOTPAttempts = 10
	DefaultLockDuration         = 60 * time.Minute
	DefaultDeletionGracePeriod  = 30 * 24 * time.Hour
)

// AuthConfig wires the orchestrator's collaborators and policy knobs.
type AuthConfig struct {
	Tokens       *auth.TokenService
	OTP          *auth.OTPService
	RefreshStore *auth.RefreshStore
	Notifier     notifications.Notifier

	// MaxFailedOTPAttempts is the cumulative per-user ceiling that triggers
	// an account lock. It is distinct from the per-code attempt ceiling.
	MaxFailedOTPAttempts int
	LockDuration         time.Duration
	// DeletionGracePeriod is how long a soft-deleted account can be restored
	// by logging in.
	DeletionGracePeriod time.Duration
	Clock               func() time.Time
}

// AuthService implements the public authentication workflows. Every method
// returns either a result or an *errors.AppError describing the expected
// failure; unexpected faults are wrapped and logged by the boundary layer.
type AuthService struct {
	db           *gorm.DB
	tokens       *auth.TokenService
	otp          *auth.OTPService
	refresh      *auth.RefreshStore
	notifier     notifications.Notifier
	maxFailed    int
	lockDuration time.Duration
	grace        time.Duration
	now          func() time.Time
	log          *zap.Logger
}

// NewAuthService builds the orchestrator.
func NewAuthService(db *gorm.DB, cfg AuthConfig) (*AuthService, error) {
	if db == nil {
		return nil, stderrors.New("auth service: db is required")
	}
	if cfg.Tokens == nil || cfg.OTP == nil || cfg.RefreshStore == nil {
		return nil, stderrors.New("auth service: tokens, otp and refresh store are required")
	}
	if cfg.Notifier == nil {
		return nil, stderrors.New("auth service: notifier is required")
	}

	svc := &AuthService{
		db:           db,
		tokens:       cfg.Tokens,
		otp:          cfg.OTP,
		refresh:      cfg.RefreshStore,
		notifier:     cfg.Notifier,
		maxFailed:    cfg.MaxFailedOTPAttempts,
		lockDuration: cfg.LockDuration,
		grace:        cfg.DeletionGracePeriod,
		now:          cfg.Clock,
		log:          logger.WithModule("auth"),
	}
	if svc.maxFailed <= 0 {
		svc.maxFailed = DefaultMaxFailedOTPAttempts
	}
	if svc.lockDuration <= 0 {
		svc.lockDuration = DefaultLockDuration
	}
	if svc.grace <= 0 {
		svc.grace = DefaultDeletionGracePeriod
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// SignupInput carries the validated signup fields.
type SignupInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber string
}

// SignupResult is returned from signup; only the public id leaves the server.
type SignupResult struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// TokenPair is the authenticated session payload.
type TokenPair struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         *models.User `json:"user"`
}

// TemporaryTokenResult bridges reset-OTP verification and the password change.
type TemporaryTokenResult struct {
	TemporaryToken string `json:"temporaryToken"`
	ExpiresIn      int64  `json:"expiresIn"`
}

var errAccountPendingDeletion = errors.New(
	"ACCOUNT_PENDING_DELETION",
	"This account is scheduled for deletion. Please log in to restore it instead of creating a new account.",
	http.StatusConflict,
)

var errEmailAlreadyVerified = errors.New(
	"EMAIL_ALREADY_VERIFIED",
	"Email is already verified",
	http.StatusBadRequest,
)

// Signup registers a shopper account and dispatches a verification code.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	return s.signup(ctx, in, models.RoleUser)
}

// AdminSignup registers an administrator account. The caller is responsible
// for verifying the admin secret before invoking it.
func (s *AuthService) AdminSignup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	return s.signup(ctx, in, models.RoleAdmin)
}

func (s *AuthService) signup(ctx context.Context, in SignupInput, role models.Role) (*SignupResult, error) {
	now := s.now()

	var existing models.User
	err := s.db.WithContext(ctx).Take(&existing, "email = ?", in.Email).Error
	switch {
	case err == nil:
		if existing.IsDeleted && existing.DeletedAt != nil && now.Before(existing.DeletedAt.Add(s.grace)) {
			return nil, errAccountPendingDeletion
		}
		return nil, errors.ErrEmailExists
	case stderrors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, errors.Wrap(err, "failed to look up email")
	}

	username, err := s.deriveUsername(ctx, in.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive username")
	}

	passwordHash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	publicID, err := crypto.GenerateUserPublicID()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate public id")
	}

	user := &models.User{
		PublicID:     publicID,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		PhoneNumber:  in.PhoneNumber,
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	s.log.Info("user created",
		zap.String("public_id", user.PublicID),
		zap.String("role", string(role)),
	)

	code, err := s.otp.Generate(ctx, &user.ID, user.Email, models.PurposeEmailVerification)
	if err != nil {
		return nil, s.mapOTPError(err)
	}
	s.notifier.VerificationCode(ctx, user.Email, user.FirstName, code)

	return &SignupResult{UserID: user.PublicID, Email: user.Email}, nil
}

// Login authenticates by email and password. A soft-deleted account inside
// the grace period is restored when the password matches.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	now := s.now()

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}

	if user.IsDeleted {
		if user.DeletedAt == nil || now.After(user.DeletedAt.Add(s.grace)) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, errors.ErrInvalidCredentials
		}
		if !crypto.VerifyPassword(user.PasswordHash, password) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, errors.ErrInvalidCredentials
		}

		user.Restore()
		if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
			return nil, errors.Wrap(err, "failed to restore account")
		}
		s.log.Info("account restored on login", zap.String("public_id", user.PublicID))
	} else {
		// lock state is checked before the password comparison
		if user.IsLocked(now) {
			metrics.AuthAttempts.WithLabelValues("locked").Inc()
			return nil, errors.ErrAccountLocked
		}
		if !crypto.VerifyPassword(user.PasswordHash, password) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, errors.ErrInvalidCredentials
		}
	}

	if !user.EmailVerified {
		return nil, errors.ErrEmailNotVerified
	}

	pair, appErr := s.issueTokens(ctx, &user)
	if appErr != nil {
		return nil, appErr
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return pair, nil
}

// VerifyEmail validates the emailed code and auto-logs the user in. A wrong
// code counts against the user-level failed ceiling and can lock the account.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*TokenPair, error) {
	user, appErr := s.findActiveByEmail(ctx, email)
	if appErr != nil {
		return nil, appErr
	}
	if user.IsLocked(s.now()) {
		return nil, errors.ErrAccountLocked
	}

	err := s.otp.Validate(ctx, &user.ID, user.Email, models.PurposeEmailVerification, code)
	if err != nil {
		return nil, s.registerOTPOutcome(ctx, user.ID, err)
	}

	user.EmailVerified = true
	user.ResetOTPFailures()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to mark email verified")
	}

	s.log.Info("email verified", zap.String("public_id", user.PublicID))
	s.notifier.Welcome(ctx, user.Email, user.FirstName)

	pair, appErr := s.issueTokens(ctx, user)
	if appErr != nil {
		return nil, appErr
	}
	return pair, nil
}

// ResendOTP issues a fresh verification code for an unverified account.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	user, appErr := s.findActiveByEmail(ctx, email)
	if appErr != nil {
		return appErr
	}
	if user.EmailVerified {
		return errEmailAlreadyVerified
	}

	code, err := s.otp.Generate(ctx, &user.ID, user.Email, models.PurposeEmailVerification)
	if err != nil {
		return s.mapOTPError(err)
	}
	s.notifier.VerificationCode(ctx, user.Email, user.FirstName, code)
	return nil
}

// ForgotPassword issues a password-reset code.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, appErr := s.findActiveByEmail(ctx, email)
	if appErr != nil {
		return appErr
	}
	if user.IsLocked(s.now()) {
		return errors.ErrAccountLocked
	}

	code, err := s.otp.Generate(ctx, &user.ID, user.Email, models.PurposePasswordReset)
	if err != nil {
		return s.mapOTPError(err)
	}
	s.notifier.PasswordResetCode(ctx, user.Email, user.FirstName, code)
	return nil
}

// VerifyResetOTP validates the reset code and mints the temporary token that
// authorizes exactly one password change window.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) (*TemporaryTokenResult, error) {
	user, appErr := s.findActiveByEmail(ctx, email)
	if appErr != nil {
		return nil, appErr
	}
	if user.IsLocked(s.now()) {
		return nil, errors.ErrAccountLocked
	}

	err := s.otp.Validate(ctx, &user.ID, user.Email, models.PurposePasswordReset, code)
	if err != nil {
		return nil, s.registerOTPOutcome(ctx, user.ID, err)
	}

	user.ResetOTPFailures()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to reset failure counter")
	}

	token, err := s.tokens.MintTemporary(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint temporary token")
	}

	return &TemporaryTokenResult{
		TemporaryToken: token,
		ExpiresIn:      int64(s.tokens.TemporaryTTL().Seconds()),
	}, nil
}

// ResetPassword overwrites the password authorized by a temporary token and
// revokes every refresh token the user holds.
func (s *AuthService) ResetPassword(ctx context.Context, temporaryToken, newPassword string) error {
	claims, err := s.tokens.Verify(temporaryToken, auth.TokenTemporary)
	if err != nil {
		return s.mapTokenError(err)
	}

	user, appErr := s.findActiveByID(ctx, claims.UserID)
	if appErr != nil {
		return appErr
	}

	passwordHash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	user.PasswordHash = passwordHash
	user.ResetOTPFailures()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return errors.Wrap(err, "failed to update password")
	}

	if err := s.refresh.DeleteForUser(ctx, user.ID); err != nil {
		return errors.Wrap(err, "failed to revoke refresh tokens")
	}

	s.log.Info("password reset", zap.String("public_id", user.PublicID))
	s.notifier.PasswordResetConfirmation(ctx, user.Email, user.FirstName)
	return nil
}

// RefreshAccessToken mints a new access token against a stored refresh token.
// The presented refresh token is reused as-is; there is no rotation here.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if _, err := s.tokens.Verify(refreshToken, auth.TokenRefresh); err != nil {
		return nil, s.mapTokenError(err)
	}

	record, err := s.refresh.Find(ctx, refreshToken)
	switch {
	case stderrors.Is(err, auth.ErrRefreshTokenNotFound):
		return nil, errors.ErrInvalidToken
	case stderrors.Is(err, auth.ErrRefreshTokenExpired):
		return nil, errors.ErrTokenExpired
	case err != nil:
		return nil, errors.Wrap(err, "failed to look up refresh token")
	}

	user, appErr := s.findActiveByID(ctx, record.UserID)
	if appErr != nil {
		return nil, appErr
	}

	accessToken, err := s.tokens.MintAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint access token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// Logout revokes all refresh tokens for the user. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if err := s.refresh.DeleteForUser(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to revoke refresh tokens")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, *errors.AppError) {
	accessToken, err := s.tokens.MintAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint access token")
	}
	refreshToken, err := s.tokens.MintRefresh(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint refresh token")
	}
	if err := s.refresh.Save(ctx, user.ID, refreshToken, s.now().Add(s.tokens.RefreshTTL())); err != nil {
		return nil, errors.Wrap(err, "failed to persist refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// registerOTPOutcome translates an OTP validation failure. Only a wrong code
// against a live record counts toward the user-level ceiling; a missing or
// already-consumed record, expired codes and exhausted records pass through
// without escalation.
func (s *AuthService) registerOTPOutcome(ctx context.Context, userID uint, err error) error {
	switch {
	case stderrors.Is(err, auth.ErrOTPNotFound):
		return errors.ErrInvalidOTP
	case stderrors.Is(err, auth.ErrOTPExpired):
		return errors.ErrOTPExpired
	case stderrors.Is(err, auth.ErrOTPAttemptsExhausted):
		return errors.ErrMaxOTPAttempts
	case stderrors.Is(err, auth.ErrOTPInvalid):
		locked, failErr := s.recordFailedAttempt(ctx, userID)
		if failErr != nil {
			return errors.Wrap(failErr, "failed to record otp failure")
		}
		if locked {
			return errors.ErrAccountLocked
		}
		return errors.ErrInvalidOTP
	default:
		return errors.Wrap(err, "otp validation failed")
	}
}

// recordFailedAttempt increments the user's cumulative failed counter inside
// a row-locked transaction and applies the lock once the ceiling is reached.
func (s *AuthService) recordFailedAttempt(ctx context.Context, userID uint) (bool, error) {
	locked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).Take(&user, "id = ?", userID).Error; err != nil {
			return err
		}

		user.FailedOTPAttempts++
		if user.FailedOTPAttempts >= s.maxFailed {
			user.Lock(s.now(), s.lockDuration)
			locked = true
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return false, err
	}

	if locked {
		s.log.Warn("account locked after repeated otp failures", zap.Uint("user_id", userID))
	}
	return locked, nil
}

func (s *AuthService) findActiveByEmail(ctx context.Context, email string) (*models.User, *errors.AppError) {
	var user models.User
	err := s.db.WithContext(ctx).
		Take(&user, "email = ? AND is_deleted = ?", email, false).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	return &user, nil
}

func (s *AuthService) findActiveByID(ctx context.Context, id uint) (*models.User, *errors.AppError) {
	var user models.User
	err := s.db.WithContext(ctx).
		Take(&user, "id = ? AND is_deleted = ?", id, false).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	return &user, nil
}

// deriveUsername takes the email local part and appends a numeric suffix
// until it is unique.
func (s *AuthService) deriveUsername(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}

	username := base
	for suffix := 1; ; suffix++ {
		var count int64
		err := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("username = ?", username).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, suffix)
	}
}

func (s *AuthService) mapOTPError(err error) error {
	var rl *auth.RateLimitError
	if stderrors.As(err, &rl) {
		seconds := int((rl.RetryAfter + time.Second - 1) / time.Second)
		return errors.NewRateLimit(rl.Reason, seconds)
	}
	return errors.Wrap(err, "failed to generate otp")
}

func (s *AuthService) mapTokenError(err error) *errors.AppError {
	if stderrors.Is(err, auth.ErrTokenExpired) {
		return errors.ErrTokenExpired
	}
	return errors.ErrInvalidToken
}

// lockForUpdate applies row-level locking on databases that support it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
