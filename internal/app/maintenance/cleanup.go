package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/cache"
	"github.com/zentrolabs/zentro/pkg/logger"
)

const (
	defaultOTPSpec   = "@hourly"
	defaultTokenSpec = "@daily"
	defaultCacheSpec = "@hourly"
)

// Cleaner coordinates background maintenance tasks: purging expired OTP
// records, removing expired refresh tokens and sweeping the database cache.
type Cleaner struct {
	otp     *iauth.OTPService
	refresh *iauth.RefreshStore
	dbCache *cache.DatabaseStore
	cron    *cron.Cron
	log     *zap.Logger

	otpSchedule   string
	tokenSchedule string
	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithOTPSchedule overrides the cron specification for OTP cleanup.
func WithOTPSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.otpSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for refresh token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache sweeping.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(otp *iauth.OTPService, refresh *iauth.RefreshStore, dbCache *cache.DatabaseStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		otp:           otp,
		refresh:       refresh,
		dbCache:       dbCache,
		otpSchedule:   defaultOTPSpec,
		tokenSchedule: defaultTokenSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.otp != nil {
		if _, err := c.cron.AddFunc(c.otpSchedule, func() {
			ctx := context.Background()
			if n, err := c.otp.SweepExpired(ctx); err != nil {
				c.log.Warn("otp cleanup failed", zap.Error(err))
			} else if n > 0 {
				c.log.Info("expired otp records removed", zap.Int64("count", n))
			}
		}); err != nil {
			return err
		}
	}

	if c.refresh != nil {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			ctx := context.Background()
			if n, err := c.refresh.DeleteExpired(ctx); err != nil {
				c.log.Warn("refresh token cleanup failed", zap.Error(err))
			} else if n > 0 {
				c.log.Info("expired refresh tokens removed", zap.Int64("count", n))
			}
		}); err != nil {
			return err
		}
	}

	if c.dbCache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			ctx := context.Background()
			if _, err := c.dbCache.SweepExpired(ctx); err != nil {
				c.log.Warn("cache sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.otp != nil {
		if _, err := c.otp.SweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.refresh != nil {
		if _, err := c.refresh.DeleteExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.dbCache != nil {
		if _, err := c.dbCache.SweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
