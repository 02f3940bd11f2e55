package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBasicAuthenticator_ValidCredentials(t *testing.T) {
	a := NewBasicAuthenticator("alice", "s3cret")
	h := basicHeader("alice", "s3cret")

	user, err := a.Authenticate(h)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected username: %q", user.Username)
	}
}

func TestBasicAuthenticator_WrongPassword(t *testing.T) {
	a := NewBasicAuthenticator("alice", "s3cret")
	_, err := a.Authenticate(basicHeader("alice", "wrong"))
	if !errors.Is(err, InvalidCredentialsError{}) {
		t.Fatalf("expected InvalidCredentialsError, got %v", err)
	}
}

func TestBasicAuthenticator_MissingHeader(t *testing.T) {
	a := NewBasicAuthenticator("alice", "s3cret")
	_, err := a.Authenticate(http.Header{})
	if !errors.Is(err, MissingAuthHeaderError{}) {
		t.Fatalf("expected MissingAuthHeaderError, got %v", err)
	}
}

func TestJWTAuthenticator_ExpiredTokenIsInvalidTokenExpired(t *testing.T) {
	secret := []byte("top-secret")
	a := NewJWTAuthenticator(JWTConfig{Secret: secret, VerifyExp: true})

	claims := jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString(secret)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+signed)

	_, err := a.Authenticate(h)
	var invalid InvalidTokenError
	if !errors.As(err, &invalid) || invalid.Reason != "expired" {
		t.Fatalf("expected InvalidTokenError{expired}, got %v", err)
	}
}

func TestJWTAuthenticator_ValidTokenExtractsSubject(t *testing.T) {
	secret := []byte("top-secret")
	a := NewJWTAuthenticator(JWTConfig{Secret: secret})

	claims := jwt.MapClaims{"sub": "carol"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString(secret)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+signed)

	user, err := a.Authenticate(h)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "carol" {
		t.Fatalf("expected subject carol, got %q", user.Username)
	}
}

func basicHeader(user, pass string) http.Header {
	h := http.Header{}
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	h.Set("Authorization", "Basic "+encoded)
	return h
}
