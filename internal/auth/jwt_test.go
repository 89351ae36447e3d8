package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)

	tok, err := tokens.Issue("u1", "h1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ac, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ac.UserID != "u1" || ac.HouseholdID != "h1" {
		t.Errorf("identity = %+v, want u1/h1", ac)
	}
}

func TestParseWrongSecret(t *testing.T) {
	tok, _ := NewTokens("one", time.Hour).Issue("u1", "h1")

	_, err := NewTokens("two", time.Hour).Parse(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseExpired(t *testing.T) {
	claims := Claims{
		HouseholdID: "h1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewTokens("k", time.Hour).Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseMissingHousehold(t *testing.T) {
	tok, _ := NewTokens("k", time.Hour).Issue("u1", "")

	if _, err := NewTokens("k", time.Hour).Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := NewTokens("k", time.Hour).Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
