package crypto

import (
	"regexp"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestRandomNumericCode(t *testing.T) {
	code, err := RandomNumericCode(6)
	if err != nil {
		t.Fatalf("code error: %v", err)
	}

	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Fatalf("expected 6 digits, got %q", code)
	}

	// Zero or negative lengths fall back to the default.
	code, err = RandomNumericCode(0)
	if err != nil {
		t.Fatalf("code error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected default length 6, got %d", len(code))
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	a := HashToken("token-value")
	b := HashToken("token-value")
	c := HashToken("other-token")

	if a != b {
		t.Fatal("expected identical digests for identical input")
	}
	if a == c {
		t.Fatal("expected distinct digests for distinct input")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestGeneratePublicIDFormat(t *testing.T) {
	id, err := GenerateUserPublicID()
	if err != nil {
		t.Fatalf("public id error: %v", err)
	}

	if !regexp.MustCompile(`^USR-\d+-[A-Z0-9]{6}$`).MatchString(id) {
		t.Fatalf("unexpected public id format: %q", id)
	}
}
