package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, time.Hour)
	tok, exp, err := issuer.Issue("actor-1", "PATIENT", "p@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected expiry in the future, got %s", exp)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.ID != "actor-1" || claims.Role != "PATIENT" || claims.Email != "p@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := issuer.Issue("actor-1", "PATIENT", "")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenIssuer_WrongKey(t *testing.T) {
	tok, _, err := NewTokenIssuer([]byte("other-key"), time.Hour).Issue("actor-1", "CAREGIVER", "")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := NewTokenIssuer(testSigningKey, time.Hour).Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_RejectsMissingExpiryAndGarbage(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, time.Hour)

	noExp := createTestToken(t, Claims{ID: "actor-1", Role: "PATIENT"}, testSigningKey)
	if _, err := issuer.Verify(noExp); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for token without exp, got %v", err)
	}
	if _, err := issuer.Verify("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestTokenIssuer_FallsBackToSubject(t *testing.T) {
	tok := createTestToken(t, Claims{
		Role: "CAREGIVER",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "actor-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSigningKey)

	claims, err := NewTokenIssuer(testSigningKey, time.Hour).Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.ID != "actor-9" {
		t.Errorf("expected id from subject, got %q", claims.ID)
	}
}
