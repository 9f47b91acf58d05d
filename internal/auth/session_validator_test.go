package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signSessionToken(t *testing.T, secret []byte, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestSessionValidatorAcceptsValidCookie(t *testing.T) {
	secret := []byte("stream-secret")
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: secret,
		Issuer:        "modnotes-auth",
		CookieName:    "modnotes_session",
		Clock:         fixedClock(1700000000),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	token := signSessionToken(t, secret, SessionClaims{
		DisplayName: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "modalice",
			Issuer:    "modnotes-auth",
			IssuedAt:  jwt.NewNumericDate(time.Unix(1700000000, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(1700000900, 0)),
		},
	})

	request, err := http.NewRequest(http.MethodGet, "/subreddits/pics/stream", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(&http.Cookie{Name: "modnotes_session", Value: token})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.Subject != "modalice" || claims.DisplayName != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionValidatorRejectsMissingCookie(t *testing.T) {
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte("stream-secret"),
		Issuer:        "modnotes-auth",
		CookieName:    "modnotes_session",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	request, err := http.NewRequest(http.MethodGet, "/subreddits/pics/stream", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected ErrMissingSessionToken, got %v", err)
	}
}

func TestSessionValidatorRejectsExpiredToken(t *testing.T) {
	secret := []byte("stream-secret")
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: secret,
		Issuer:        "modnotes-auth",
		CookieName:    "modnotes_session",
		Clock:         fixedClock(1700009000),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	token := signSessionToken(t, secret, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "modalice",
			Issuer:    "modnotes-auth",
			IssuedAt:  jwt.NewNumericDate(time.Unix(1700000000, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(1700000900, 0)),
		},
	})
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestSessionValidatorRejectsWrongIssuer(t *testing.T) {
	secret := []byte("stream-secret")
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: secret,
		Issuer:        "modnotes-auth",
		CookieName:    "modnotes_session",
		Clock:         fixedClock(1700000000),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	token := signSessionToken(t, secret, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "modalice",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Unix(1700000900, 0)),
		},
	})
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestNewSessionValidatorRequiresConfiguration(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{Issuer: "x", CookieName: "y"}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected ErrMissingSessionSigningKey, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), CookieName: "y"}); !errors.Is(err, ErrMissingSessionIssuer) {
		t.Fatalf("expected ErrMissingSessionIssuer, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s"), Issuer: "x"}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected ErrMissingSessionCookieName, got %v", err)
	}
}
