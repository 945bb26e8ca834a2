package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, cfg Config, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "deeds.identity"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"iss":       cfg.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    "deeds:read deeds:write",
	})

	claims, err := Parse(signed, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" || claims.TenantID != "tenant-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.HasScope(ScopeDeedsWrite) || !claims.HasScope(ScopeDeedsRead) {
		t.Fatalf("expected both scopes, got %v", claims.Scopes)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "deeds.identity"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"iss":       "someone-else",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(signed, cfg); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestParseRejectsMissingTenant(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "deeds.identity"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub": "user-1",
		"iss": cfg.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := Parse(signed, cfg); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestParseEmptyToken(t *testing.T) {
	if _, err := Parse("  ", Config{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken got %v", err)
	}
}
