package auth

import (
	"crypto/subtle"
	"net/http"
)

// BasicAuthenticator checks HTTP Basic credentials against a fixed
// username/password, byte-exact via a constant-time compare.
type BasicAuthenticator struct {
	Username string
	Password string
}

// NewBasicAuthenticator creates a BasicAuthenticator for one fixed
// credential pair.
func NewBasicAuthenticator(username, password string) *BasicAuthenticator {
	return &BasicAuthenticator{Username: username, Password: password}
}

func (a *BasicAuthenticator) Authenticate(header http.Header) (User, error) {
	encoded, err := splitBearer(header, "Basic")
	if err != nil {
		return User{}, err
	}
	user, pass, err := decodeBasic(encoded)
	if err != nil {
		return User{}, err
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.Password)) == 1
	if !userOK || !passOK {
		return User{}, InvalidCredentialsError{}
	}
	return User{Username: user, Claims: map[string]any{"sub": user}}, nil
}
