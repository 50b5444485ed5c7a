package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret-0123"

func TestTokenManagerRoundTrip(t *testing.T) {
	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	token, err := tm.Generate(42, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Subject != "42" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	tm, err := NewTokenManager(testSecret, time.Minute, WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	token, err := tm.Generate(1, "bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now = issued.Add(2 * time.Minute)
	if _, err := tm.Validate(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestTokenManagerRejectsForeignSecret(t *testing.T) {
	a, _ := NewTokenManager(testSecret, time.Hour)
	b, _ := NewTokenManager(strings.Repeat("x", 40), time.Hour)
	token, err := a.Generate(1, "carol")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := b.Validate(token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
	if _, err := a.Validate(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
}

func TestTokenManagerRejectsOtherIssuer(t *testing.T) {
	a, _ := NewTokenManager(testSecret, time.Hour, WithIssuer("other"))
	b, _ := NewTokenManager(testSecret, time.Hour)
	token, _ := a.Generate(1, "dave")
	if _, err := b.Validate(token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestNewTokenManagerValidatesSecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
	if _, err := NewTokenManager("short", time.Hour); !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}

func TestCodeGeneratorTracksState(t *testing.T) {
	g, err := NewCodeGenerator(testSecret)
	if err != nil {
		t.Fatalf("new code generator: %v", err)
	}
	code := g.Make("1", "alice", "a@x.com")
	if !g.Check(code, "1", "alice", "a@x.com") {
		t.Fatalf("fresh code should verify")
	}
	if g.Check(code, "1", "alice", "b@x.com") {
		t.Fatalf("code should not verify after state change")
	}
	if g.Check(code, "1", "alic", "ea@x.com") {
		t.Fatalf("field boundaries must be part of the derivation")
	}
	if g.Check("wrong", "1", "alice", "a@x.com") {
		t.Fatalf("garbage code should not verify")
	}
	if code != g.Make("1", "alice", "a@x.com") {
		t.Fatalf("derivation must be deterministic")
	}
}

func TestCodeGeneratorSecretMatters(t *testing.T) {
	a, _ := NewCodeGenerator("one")
	b, _ := NewCodeGenerator("two")
	if b.Check(a.Make("1"), "1") {
		t.Fatalf("codes must be bound to the secret")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")) != nil {
		t.Fatalf("hash does not match its password")
	}
	p1, _ := PlaceholderPasswordHash()
	p2, _ := PlaceholderPasswordHash()
	if p1 == "" || p1 == p2 {
		t.Fatalf("placeholder hashes should be non-empty and distinct")
	}
}
