package rbac

import "fmt"

// AccessDeniedError carries the context spec §7 requires: the user, the
// path they attempted, what was required, and what they actually hold.
type AccessDeniedError struct {
	User     string
	Path     string
	Required []Permission
	Granted  []Permission
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("rbac: access denied for user %q on %q: required %v, granted %v",
		e.User, e.Path, e.Required, e.Granted)
}

// Handler authorizes requests against a Config.
type Handler struct {
	Config *Config
}

// NewHandler creates a Handler over config.
func NewHandler(config *Config) *Handler {
	return &Handler{Config: config}
}

// Authorize checks whether user may access path, returning
// *AccessDeniedError if not. A path with no route rule is always allowed.
func (h *Handler) Authorize(user, path string) error {
	required := h.Config.RoutePermissions(path)
	if len(required) == 0 {
		return nil
	}
	granted := h.Config.UserPermissions(user)

	if h.Config.AllowAny {
		for _, req := range required {
			for _, g := range granted {
				if g.Matches(req) {
					return nil
				}
			}
		}
		return &AccessDeniedError{User: user, Path: path, Required: required, Granted: granted}
	}

	for _, req := range required {
		ok := false
		for _, g := range granted {
			if g.Matches(req) {
				ok = true
				break
			}
		}
		if !ok {
			return &AccessDeniedError{User: user, Path: path, Required: required, Granted: granted}
		}
	}
	return nil
}

// ExtractUsername resolves the subject identity from claims, preferring
// "sub", then "user_id", matching the original handler's precedence.
func ExtractUsername(claims map[string]any) string {
	for _, key := range []string{"sub", "user_id", "username"} {
		if v, ok := claims[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
