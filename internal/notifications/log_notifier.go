package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/zentrolabs/zentro/pkg/logger"
)

// LogNotifier writes notification events to the application log instead of
// sending email. Used when SMTP is disabled, typically in development.
// One-time codes are logged in full, so never enable this in production.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithModule("notifications")}
}

func (n *LogNotifier) VerificationCode(_ context.Context, email, _, code string) {
	n.log.Info("verification code issued", zap.String("email", email), zap.String("code", code))
}

func (n *LogNotifier) PasswordResetCode(_ context.Context, email, _, code string) {
	n.log.Info("password reset code issued", zap.String("email", email), zap.String("code", code))
}

func (n *LogNotifier) Welcome(_ context.Context, email, _ string) {
	n.log.Info("welcome notification", zap.String("email", email))
}

func (n *LogNotifier) PasswordResetConfirmation(_ context.Context, email, _ string) {
	n.log.Info("password reset confirmation", zap.String("email", email))
}
