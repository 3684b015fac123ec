package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Role is a named authority.
type Role string

const (
	RoleAdmin Role = "ROLE_ADMIN"
	RoleUser  Role = "ROLE_USER"

	// RoleUnknown stands in for any unrecognized role name so that
	// decoding never fails on role names added later.
	RoleUnknown Role = "UNKNOWN"
)

const rolePrefix = "ROLE_"

// ParseRole maps a role name to a Role. Both "ADMIN" and "ROLE_ADMIN"
// are accepted, case-insensitively. Anything else is RoleUnknown.
func ParseRole(s string) Role {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, rolePrefix) {
		name = rolePrefix + name
	}
	switch Role(name) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleUnknown
	}
}

// ParseRoles maps every name with ParseRole.
func ParseRoles(names []string) []Role {
	out := make([]Role, 0, len(names))
	for _, n := range names {
		out = append(out, ParseRole(n))
	}
	return out
}

// Short returns the role name without the ROLE_ prefix.
func (r Role) Short() string {
	return strings.TrimPrefix(string(r), rolePrefix)
}

// Known reports whether r is a recognized role.
func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleUser
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// RoleStrings converts roles to authority strings.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// DefaultRoles is the role set every new account receives.
var DefaultRoles = []Role{RoleUser}

// CatalogRole is a role record held by the role catalog.
type CatalogRole struct {
	ID   int64
	Name Role
}

// RoleCatalog resolves role names to catalog records.
type RoleCatalog interface {
	// FindRolesByName returns the catalog records for the known names.
	// Names missing from the catalog are omitted, not reported.
	FindRolesByName(ctx context.Context, names []Role) ([]CatalogRole, error)
}

// RoleAssigner computes the role set stored for a new account.
type RoleAssigner struct {
	defaults []Role
}

// NewRoleAssigner creates an assigner with the given defaults.
// With no defaults, DefaultRoles is used.
func NewRoleAssigner(defaults ...Role) *RoleAssigner {
	if len(defaults) == 0 {
		defaults = DefaultRoles
	}
	return &RoleAssigner{defaults: normalizeRoles(defaults)}
}

// Defaults returns a copy of the default role set.
func (a *RoleAssigner) Defaults() []Role {
	return slices.Clone(a.defaults)
}

// Assign merges requested roles with the defaults.
//
// Unknown roles are dropped first. An empty request yields the defaults.
// Otherwise overwrite=false returns the union of defaults and request and
// overwrite=true returns the request alone. The result is sorted.
func (a *RoleAssigner) Assign(requested []Role, overwrite bool) []Role {
	req := normalizeRoles(requested)
	if len(req) == 0 {
		return slices.Clone(a.defaults)
	}
	if overwrite {
		return req
	}
	return normalizeRoles(append(slices.Clone(a.defaults), req...))
}

// Authorize checks whether actor may request the given roles.
//
// Adding any role outside the defaults, or replacing the defaults, is an
// elevation and requires ROLE_ADMIN.
func (a *RoleAssigner) Authorize(actor *Principal, requested []Role, overwrite bool) error {
	if !a.elevates(requested, overwrite) {
		return nil
	}
	if actor.IsAdmin() {
		return nil
	}
	return ErrElevationDenied
}

func (a *RoleAssigner) elevates(requested []Role, overwrite bool) bool {
	req := normalizeRoles(requested)
	if len(req) == 0 {
		return false
	}
	if overwrite && !slices.Equal(req, a.defaults) {
		return true
	}
	for _, r := range req {
		if !slices.Contains(a.defaults, r) {
			return true
		}
	}
	return false
}

// Resolve looks roles up in the catalog. Roles the catalog does not know
// are dropped.
func (a *RoleAssigner) Resolve(ctx context.Context, catalog RoleCatalog, roles []Role) ([]CatalogRole, error) {
	roles = normalizeRoles(roles)
	if len(roles) == 0 {
		return []CatalogRole{}, nil
	}
	found, err := catalog.FindRolesByName(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve roles: %w", err)
	}
	out := make([]CatalogRole, 0, len(found))
	for _, cr := range found {
		if slices.Contains(roles, cr.Name) {
			out = append(out, cr)
		}
	}
	slices.SortFunc(out, func(x, y CatalogRole) int { return strings.Compare(string(x.Name), string(y.Name)) })
	return out, nil
}

// normalizeRoles drops unknown roles, removes duplicates and sorts.
func normalizeRoles(roles []Role) []Role {
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !r.Known() || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}
