// Package auth implements the gateway's auth engine (spec §4.9): HTTP
// Basic and JWT Bearer authenticators, both producing a flat User record
// rather than a class hierarchy.
package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// User is the authenticated subject, with JWT/Basic-specific detail left
// in Claims rather than modeled as separate types.
type User struct {
	Username string
	Claims   map[string]any
}

// Authenticator validates inbound request headers and returns a User.
type Authenticator interface {
	Authenticate(header http.Header) (User, error)
}

// MissingAuthHeaderError is returned when the Authorization header is
// absent entirely.
type MissingAuthHeaderError struct{}

func (MissingAuthHeaderError) Error() string { return "auth: missing Authorization header" }

// InvalidAuthHeaderError is returned when Authorization is present but
// malformed (wrong scheme, bad base64, no colon separator, etc).
type InvalidAuthHeaderError struct {
	Reason string
}

func (e InvalidAuthHeaderError) Error() string { return "auth: invalid Authorization header: " + e.Reason }

// InvalidCredentialsError is returned on a Basic auth username/password
// mismatch.
type InvalidCredentialsError struct{}

func (InvalidCredentialsError) Error() string { return "auth: invalid credentials" }

// InvalidTokenError is returned on any JWT validation failure, with Reason
// distinguishing the subcause per spec §7.
type InvalidTokenError struct {
	Reason string // "expired", "bad-signature", "bad-audience", "bad-issuer", "malformed"
}

func (e InvalidTokenError) Error() string { return "auth: invalid token: " + e.Reason }

func splitBearer(header http.Header, scheme string) (string, error) {
	raw := header.Get("Authorization")
	if raw == "" {
		return "", MissingAuthHeaderError{}
	}
	prefix := scheme + " "
	if !strings.HasPrefix(raw, prefix) {
		return "", InvalidAuthHeaderError{Reason: "expected " + scheme + " scheme"}
	}
	return strings.TrimPrefix(raw, prefix), nil
}

func decodeBasic(encoded string) (user, pass string, err error) {
	decoded, decErr := base64.StdEncoding.DecodeString(encoded)
	if decErr != nil {
		return "", "", InvalidAuthHeaderError{Reason: "malformed base64"}
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", InvalidAuthHeaderError{Reason: "missing colon separator"}
	}
	return parts[0], parts[1], nil
}
