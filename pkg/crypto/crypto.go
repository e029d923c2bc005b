package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
// bcrypt comparison is not vulnerable to timing differences on the candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// HashOTP hashes a one-time code for storage. The plaintext code is never persisted.
func HashOTP(code string) (string, error) {
	return HashPassword(code)
}

// VerifyOTP compares a stored OTP hash with the candidate code.
func VerifyOTP(hash, code string) bool {
	return VerifyPassword(hash, code)
}

// RandomNumericCode produces a cryptographically random, zero-padded numeric code.
func RandomNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// HashToken produces a deterministic SHA-256 hex digest of a token.
// Used only for refresh-token storage and lookup, never for signature validation.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
