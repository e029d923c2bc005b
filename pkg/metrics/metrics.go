package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zentro_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// OTPGenerated counts issued one-time codes by purpose.
	OTPGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zentro_otp_generated_total",
			Help: "Total number of one-time codes generated",
		},
		[]string{"purpose"},
	)

	// OTPValidations counts OTP validation outcomes (success|invalid|expired|exhausted).
	OTPValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zentro_otp_validations_total",
			Help: "Total number of OTP validation attempts",
		},
		[]string{"result"},
	)

	// ActiveRefreshTokens tracks stored refresh tokens.
	ActiveRefreshTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zentro_active_refresh_tokens",
			Help: "Number of stored refresh tokens",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zentro_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
