package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestGenerateAndParseAccessToken(t *testing.T) {
	now := time.Now()
	token, err := GenerateAccessToken("guard", "gate-001", testSecret, 30*time.Minute, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWT", token)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "guard" || claims.SiteID != "gate-001" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Errorf("token lifetime = %v, want 30m", got)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	token, err := GenerateAccessToken("guard", "", testSecret, 0, time.Now())
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != defaultTokenTTL {
		t.Errorf("token lifetime = %v, want %v", got, defaultTokenTTL)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateAccessToken("guard", "", testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	expired, err := GenerateAccessToken("guard", "", testSecret, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	noSubject, err := GenerateAccessToken("", "", testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "guard", Issuer: "gatehouse"},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "another-secret-that-is-32-chars-long"},
		{"expired", expired, testSecret},
		{"missing subject", noSubject, testSecret},
		{"unexpected algorithm", hs512, testSecret},
		{"garbage", "not.a.jwt", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
