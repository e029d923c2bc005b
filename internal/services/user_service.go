package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/models"
	"github.com/zentrolabs/zentro/pkg/errors"
	"github.com/zentrolabs/zentro/pkg/logger"
)

// DefaultUsernameCooldown is the minimum wait between username changes.
const DefaultUsernameCooldown = 30 * 24 * time.Hour

// UserConfig wires the profile service.
type UserConfig struct {
	RefreshStore     *auth.RefreshStore
	UsernameCooldown time.Duration
	Clock            func() time.Time
}

// UserService implements the profile surface: read, update, username change
// and soft account deletion.
type UserService struct {
	db       *gorm.DB
	refresh  *auth.RefreshStore
	cooldown time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewUserService builds the profile service.
func NewUserService(db *gorm.DB, cfg UserConfig) (*UserService, error) {
	if db == nil {
		return nil, stderrors.New("user service: db is required")
	}
	if cfg.RefreshStore == nil {
		return nil, stderrors.New("user service: refresh store is required")
	}

	svc := &UserService{
		db:       db,
		refresh:  cfg.RefreshStore,
		cooldown: cfg.UsernameCooldown,
		now:      cfg.Clock,
		log:      logger.WithModule("users"),
	}
	if svc.cooldown <= 0 {
		svc.cooldown = DefaultUsernameCooldown
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// UpdateProfileInput carries the mutable profile fields. An empty phone
// number leaves the stored value untouched.
type UpdateProfileInput struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// GetProfile returns the user's profile.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, appErr := s.findByID(ctx, userID)
	if appErr != nil {
		return nil, appErr
	}
	return user, nil
}

// UpdateProfile overwrites name fields and optionally the phone number.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, appErr := s.findByID(ctx, userID)
	if appErr != nil {
		return nil, appErr
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	if in.PhoneNumber != "" {
		user.PhoneNumber = in.PhoneNumber
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update profile")
	}

	s.log.Info("profile updated", zap.String("public_id", user.PublicID))
	return user, nil
}

// ChangeUsername applies the 30-day cooldown and global uniqueness check.
func (s *UserService) ChangeUsername(ctx context.Context, userID uint, username string) (*models.User, error) {
	user, appErr := s.findByID(ctx, userID)
	if appErr != nil {
		return nil, appErr
	}

	now := s.now()
	if user.UsernameChangedAt != nil {
		elapsed := now.Sub(*user.UsernameChangedAt)
		if elapsed < s.cooldown {
			remainingDays := int((s.cooldown-elapsed)/(24*time.Hour)) + 1
			return nil, errors.NewBadRequest(fmt.Sprintf(
				"You can change your username again in %d days", remainingDays,
			))
		}
	}

	var taken int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ? AND id != ?", username, userID).
		Count(&taken).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to check username")
	}
	if taken > 0 {
		return nil, errors.ErrUsernameTaken
	}

	user.Username = username
	user.UsernameChangedAt = &now
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, errors.Wrap(err, "failed to change username")
	}

	s.log.Info("username changed", zap.String("public_id", user.PublicID))
	return user, nil
}

// DeleteAccount soft-deletes the user. The row is kept so the account can be
// restored by logging in within the grace period; the long lock blocks every
// other access path. All refresh tokens are revoked immediately.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	user, appErr := s.findByID(ctx, userID)
	if appErr != nil {
		return appErr
	}
	if user.IsDeleted {
		return errors.NewBadRequest("Account is already deleted")
	}

	user.SoftDelete(s.now())
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return errors.Wrap(err, "failed to delete account")
	}

	if err := s.refresh.DeleteForUser(ctx, userID); err != nil {
		return errors.Wrap(err, "failed to revoke refresh tokens")
	}

	s.log.Info("account soft-deleted", zap.String("public_id", user.PublicID))
	return nil
}

func (s *UserService) findByID(ctx context.Context, id uint) (*models.User, *errors.AppError) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	return &user, nil
}
