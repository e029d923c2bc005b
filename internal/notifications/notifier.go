// Package notifications delivers account emails. Delivery is fire-and-forget:
// a failed send is logged and never fails the calling workflow.
package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zentrolabs/zentro/pkg/logger"
	"github.com/zentrolabs/zentro/pkg/mail"
)

// Notifier is the outbound notification surface used by the auth workflows.
type Notifier interface {
	VerificationCode(ctx context.Context, email, firstName, code string)
	PasswordResetCode(ctx context.Context, email, firstName, code string)
	Welcome(ctx context.Context, email, firstName string)
	PasswordResetConfirmation(ctx context.Context, email, firstName string)
}

const sendTimeout = 10 * time.Second

// EmailNotifier sends notifications over SMTP. Each send runs in its own
// goroutine detached from the request context.
type EmailNotifier struct {
	mailer mail.Mailer
	from   string
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewEmailNotifier builds a notifier sending from the given address.
func NewEmailNotifier(mailer mail.Mailer, from string) *EmailNotifier {
	return &EmailNotifier{
		mailer: mailer,
		from:   from,
		log:    logger.WithModule("notifications"),
	}
}

func (n *EmailNotifier) VerificationCode(ctx context.Context, email, firstName, code string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Zentro! Use the code below to verify your email address:\n\n%s\n\nThis code will expire in 5 minutes.\nIf you didn't request this, please ignore this email.\n",
		firstName, code,
	)
	n.dispatch(email, "Verify Your Zentro Account", body)
}

func (n *EmailNotifier) PasswordResetCode(ctx context.Context, email, firstName, code string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your Zentro password. Use the code below:\n\n%s\n\nThis code will expire in 5 minutes.\nIf you didn't request this, your account is secure. You can safely ignore this email.\n",
		firstName, code,
	)
	n.dispatch(email, "Reset Your Zentro Password", body)
}

func (n *EmailNotifier) Welcome(ctx context.Context, email, firstName string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account has been successfully verified! We're excited to have you join the Zentro community.\n\nHappy shopping!\n",
		firstName,
	)
	n.dispatch(email, "Welcome to Zentro!", body)
}

func (n *EmailNotifier) PasswordResetConfirmation(ctx context.Context, email, firstName string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour Zentro password has been successfully reset.\n\nIf you didn't make this change, please contact our support team immediately.\n",
		firstName,
	)
	n.dispatch(email, "Password Reset Successful", body)
}

// Flush blocks until all in-flight sends complete. Intended for shutdown
// and tests.
func (n *EmailNotifier) Flush() {
	n.wg.Wait()
}

func (n *EmailNotifier) dispatch(to, subject, body string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		err := n.mailer.Send(ctx, mail.Message{
			From:    n.from,
			To:      to,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			n.log.Error("email delivery failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
			return
		}
		n.log.Info("email sent",
			zap.String("to", to),
			zap.String("subject", subject),
		)
	}()
}
