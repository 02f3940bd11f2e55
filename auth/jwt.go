package auth

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig controls which standard claims are verified, mirroring the
// original JWTAuth's options dict.
//
// VerifyExp set to false skips all claim validation (exp, nbf, iat,
// audience and issuer); only the signature is checked. VerifyNbf is not
// consulted: whenever claims are validated, an nbf claim present in the
// token is checked.
type JWTConfig struct {
	Secret        []byte
	Algorithm     string // e.g. "HS256"; empty accepts any signing method
	VerifyExp     bool
	VerifyNbf     bool
	VerifyIat     bool
	Audience      string // empty disables audience verification
	Issuer        string // empty disables issuer verification
}

// JWTAuthenticator validates Bearer tokens per JWTConfig.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWTAuthenticator for config.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	var opts []jwt.ParserOption
	if !config.VerifyExp {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	if config.Algorithm != "" {
		opts = append(opts, jwt.WithValidMethods([]string{config.Algorithm}))
	}
	if config.VerifyIat {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}
}

func (a *JWTAuthenticator) Authenticate(header http.Header) (User, error) {
	raw, err := splitBearer(header, "Bearer")
	if err != nil {
		return User{}, err
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	if err != nil {
		return User{}, classifyJWTError(err)
	}
	if !token.Valid {
		return User{}, InvalidTokenError{Reason: "malformed"}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return User{Username: extractSubject(out), Claims: out}, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return InvalidTokenError{Reason: "expired"}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return InvalidTokenError{Reason: "bad-signature"}
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return InvalidTokenError{Reason: "bad-audience"}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return InvalidTokenError{Reason: "bad-issuer"}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return InvalidTokenError{Reason: "malformed"}
	default:
		return InvalidTokenError{Reason: "malformed"}
	}
}

func extractSubject(claims map[string]any) string {
	for _, key := range []string{"sub", "user_id", "username"} {
		if v, ok := claims[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
