// Package rbac implements the gateway's role-based access control engine
// (spec §4.8): permissions of the form "action:resource", roles that group
// them, a config mapping users to roles and routes to required
// permissions, and a handler that authorizes a request against it.
package rbac

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var permissionPattern = regexp.MustCompile(`^([A-Za-z0-9_]+|\*):([A-Za-z0-9_]+|\*)$`)
var roleNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Permission is an "action:resource" pair; either side may be "*".
type Permission struct {
	Action   string
	Resource string
}

// ParsePermission validates and parses a permission string.
func ParsePermission(s string) (Permission, error) {
	m := permissionPattern.FindStringSubmatch(s)
	if m == nil {
		return Permission{}, fmt.Errorf("rbac: invalid permission format: %q", s)
	}
	return Permission{Action: m[1], Resource: m[2]}, nil
}

// String renders the permission back to "action:resource".
func (p Permission) String() string {
	return p.Action + ":" + p.Resource
}

// Matches reports whether p satisfies required, honoring wildcards on
// either side of p.
func (p Permission) Matches(required Permission) bool {
	actionOK := p.Action == "*" || p.Action == required.Action
	resourceOK := p.Resource == "*" || p.Resource == required.Resource
	return actionOK && resourceOK
}

// Role groups a named, described set of permissions.
type Role struct {
	Name        string
	Description string
	Permissions map[Permission]struct{}
}

// NewRole creates a Role, validating its name.
func NewRole(name, description string) (*Role, error) {
	if !roleNamePattern.MatchString(name) {
		return nil, fmt.Errorf("rbac: invalid role name: %q", name)
	}
	return &Role{Name: name, Description: description, Permissions: make(map[Permission]struct{})}, nil
}

// AddPermission grants perm to the role.
func (r *Role) AddPermission(perm Permission) {
	r.Permissions[perm] = struct{}{}
}

// RemovePermission revokes perm from the role.
func (r *Role) RemovePermission(perm Permission) {
	delete(r.Permissions, perm)
}

// HasPermission reports whether any of the role's permissions match
// required (via Permission.Matches).
func (r *Role) HasPermission(required Permission) bool {
	for p := range r.Permissions {
		if p.Matches(required) {
			return true
		}
	}
	return false
}

// PermissionNames returns the role's permissions as sorted strings.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for p := range r.Permissions {
		names = append(names, p.String())
	}
	sort.Strings(names)
	return names
}

// routeRule is a compiled route→permissions binding, ordered by
// specificity: fewer wildcards first, then longer pattern first — the
// same tie-break the original dispatcher's get_route_permissions uses.
type routeRule struct {
	pattern     string
	regex       *regexp.Regexp
	wildcards   int
	permissions []Permission
}

// Config holds the full RBAC policy: named roles, user→roles assignments,
// an optional default role, and route→permission rules.
type Config struct {
	roles       map[string]*Role
	userRoles   map[string][]string
	defaultRole string
	routeRules  []routeRule
	// AllowAny: true means any one required permission suffices; false
	// means all required permissions must be held.
	AllowAny bool
}

// NewConfig creates an empty Config.
func NewConfig() *Config {
	return &Config{
		roles:     make(map[string]*Role),
		userRoles: make(map[string][]string),
	}
}

// AddRole registers a role.
func (c *Config) AddRole(r *Role) {
	c.roles[r.Name] = r
}

// SetDefaultRole sets the role assigned to users with no explicit mapping.
func (c *Config) SetDefaultRole(name string) {
	c.defaultRole = name
}

// AddUserRole grants user an additional role.
func (c *Config) AddUserRole(user, role string) {
	c.userRoles[user] = append(c.userRoles[user], role)
}

// RemoveUserRole revokes role from user.
func (c *Config) RemoveUserRole(user, role string) {
	roles := c.userRoles[user]
	for i, r := range roles {
		if r == role {
			c.userRoles[user] = append(roles[:i], roles[i+1:]...)
			return
		}
	}
}

// UserRoles returns the roles assigned to user, falling back to the
// default role (if configured) when the user has no explicit assignment.
func (c *Config) UserRoles(user string) []string {
	if roles, ok := c.userRoles[user]; ok && len(roles) > 0 {
		return roles
	}
	if c.defaultRole != "" {
		return []string{c.defaultRole}
	}
	return nil
}

// UserPermissions unions the permissions of all roles held by user.
func (c *Config) UserPermissions(user string) []Permission {
	seen := make(map[Permission]struct{})
	for _, roleName := range c.UserRoles(user) {
		role, ok := c.roles[roleName]
		if !ok {
			continue
		}
		for p := range role.Permissions {
			seen[p] = struct{}{}
		}
	}
	perms := make([]Permission, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	return perms
}

// AddRoutePermission compiles pattern (a glob: "*" and "?" wildcards, or a
// "^"-prefixed verbatim regex) and binds it to the required permissions.
func (c *Config) AddRoutePermission(pattern string, permissions ...Permission) error {
	regex, wildcards, err := compileRoutePattern(pattern)
	if err != nil {
		return err
	}
	c.routeRules = append(c.routeRules, routeRule{
		pattern:     pattern,
		regex:       regex,
		wildcards:   wildcards,
		permissions: permissions,
	})
	sortRouteRules(c.routeRules)
	return nil
}

func compileRoutePattern(pattern string) (*regexp.Regexp, int, error) {
	if strings.HasPrefix(pattern, "^") {
		re, err := regexp.Compile(pattern)
		return re, strings.Count(pattern, "*"), err
	}
	wildcards := strings.Count(pattern, "*")
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	return re, wildcards, err
}

// sortRouteRules orders rules by specificity: fewer wildcards first, then
// longer pattern first, matching the original's (count('*'), -len) key.
func sortRouteRules(rules []routeRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].wildcards != rules[j].wildcards {
			return rules[i].wildcards < rules[j].wildcards
		}
		return len(rules[i].pattern) > len(rules[j].pattern)
	})
}

// RoutePermissions returns the permissions required for path, or nil if no
// rule matches.
func (c *Config) RoutePermissions(path string) []Permission {
	for _, rule := range c.routeRules {
		if rule.regex.MatchString(path) {
			return rule.permissions
		}
	}
	return nil
}

// Validate checks internal consistency: every user-assigned role and
// default role must exist.
func (c *Config) Validate() error {
	if c.defaultRole != "" {
		if _, ok := c.roles[c.defaultRole]; !ok {
			return fmt.Errorf("rbac: default role %q is not registered", c.defaultRole)
		}
	}
	for user, roles := range c.userRoles {
		for _, role := range roles {
			if _, ok := c.roles[role]; !ok {
				return fmt.Errorf("rbac: user %q assigned unknown role %q", user, role)
			}
		}
	}
	return nil
}
