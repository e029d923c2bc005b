package app

import (
	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/cache"
	"github.com/zentrolabs/zentro/internal/database"
	"github.com/zentrolabs/zentro/internal/services"
	"github.com/zentrolabs/zentro/pkg/mail"
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() iauth.TokenConfig {
	return iauth.TokenConfig{
		Secret:       c.JWT.Secret,
		Issuer:       c.JWT.Issuer,
		AccessTTL:    c.JWT.AccessTTL,
		RefreshTTL:   c.JWT.RefreshTTL,
		TemporaryTTL: c.JWT.TemporaryTTL,
	}
}

// AuthServicePolicy converts AuthConfig into the orchestrator's policy knobs.
func (c AuthConfig) AuthServicePolicy() services.AuthConfig {
	return services.AuthConfig{
		MaxFailedOTPAttempts: c.MaxFailedOTP,
		LockDuration:         c.LockDuration,
		DeletionGracePeriod:  c.DeletionGrace,
	}
}

// OTPServiceConfig converts OTPConfig into OTP service parameters.
func (c OTPConfig) OTPServiceConfig() iauth.OTPConfig {
	return iauth.OTPConfig{
		Length:       c.Length,
		Expiry:       c.Expiry,
		MaxAttempts:  c.MaxAttempts,
		Cooldown:     c.Cooldown,
		MaxPerWindow: c.MaxPerWindow,
		Window:       c.Window,
		MaxResends:   c.MaxResends,
	}
}

// DatabaseConfig converts the config block into database connection options.
func (c DatabaseConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.Username,
		Password: c.Password,
	}
}

// RedisConfig converts the cache block into Redis store options.
func (c RedisCacheConfig) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Address,
		Password: c.Password,
		DB:       c.DB,
		Prefix:   c.Prefix,
	}
}

// SMTPSettings converts the email block into mailer settings.
func (c SMTPConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.Enabled,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		UseTLS:   c.UseTLS,
		Timeout:  c.Timeout,
	}
}
