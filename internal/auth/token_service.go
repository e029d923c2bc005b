package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zentrolabs/zentro/pkg/crypto"
)

// TokenType discriminates the three credentials this service mints. Callers
// must always verify against the type they expect; a refresh token presented
// where an access token is required is rejected.
type TokenType string

const (
	TokenAccess    TokenType = "ACCESS"
	TokenRefresh   TokenType = "REFRESH"
	TokenTemporary TokenType = "TEMPORARY"
)

// Fallback lifetimes applied when configuration leaves a TTL unset.
const (
	DefaultAccessTokenTTL    = 15 * time.Minute
	DefaultRefreshTokenTTL   = 30 * 24 * time.Hour
	DefaultTemporaryTokenTTL = 5 * time.Minute
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and unknown claims.
	ErrTokenInvalid = errors.New("token: invalid")
	// ErrTokenExpired signals the token's own expiry claim has passed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenWrongType is returned when the type claim does not match the expected use.
	ErrTokenWrongType = errors.New("token: unexpected type")
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret       string
	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	TemporaryTTL time.Duration
	Clock        func() time.Time
}

// Claims represents the flat claim set embedded in issued tokens.
type Claims struct {
	UserID    uint      `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the signed tokens used across the
// authentication workflows. Minting and verification are pure and safe for
// concurrent use.
type TokenService struct {
	secret       []byte
	issuer       string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	temporaryTTL time.Duration
	now          func() time.Time
}

// NewTokenService constructs a TokenService from the supplied configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token service: secret must be provided")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	temporaryTTL := cfg.TemporaryTTL
	if temporaryTTL <= 0 {
		temporaryTTL = DefaultTemporaryTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:       []byte(cfg.Secret),
		issuer:       cfg.Issuer,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		temporaryTTL: temporaryTTL,
		now:          now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// TemporaryTTL returns the configured temporary-token lifetime.
func (s *TokenService) TemporaryTTL() time.Duration { return s.temporaryTTL }

// MintAccess issues a signed access token carrying identity and role claims.
func (s *TokenService) MintAccess(userID uint, email, role string) (string, error) {
	return s.mint(Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TokenAccess,
	}, s.accessTTL)
}

// MintRefresh issues a signed refresh token carrying only the user identity.
func (s *TokenService) MintRefresh(userID uint) (string, error) {
	return s.mint(Claims{
		UserID:    userID,
		TokenType: TokenRefresh,
	}, s.refreshTTL)
}

// MintTemporary issues the short-lived token bridging password-reset OTP
// verification and the password-change call.
func (s *TokenService) MintTemporary(userID uint, email string) (string, error) {
	return s.mint(Claims{
		UserID:    userID,
		Email:     email,
		TokenType: TokenTemporary,
	}, s.temporaryTTL)
}

func (s *TokenService) mint(claims Claims, ttl time.Duration) (string, error) {
	if claims.UserID == 0 {
		return "", errors.New("token service: user id is required")
	}

	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token service: sign token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a signed token and checks that its type claim
// matches the expected use.
func (s *TokenService) Verify(tokenString string, expected TokenType) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != expected {
		return nil, ErrTokenWrongType
	}

	return &claims, nil
}

// HashToken produces the deterministic digest under which refresh tokens are
// stored. Access tokens are validated by signature, never by storage lookup.
func (s *TokenService) HashToken(token string) string {
	return crypto.HashToken(token)
}
