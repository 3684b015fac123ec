package auth

import (
	"slices"
	"sort"
)

// Principal is the identity established from a validated token.
// It lives for a single request and is never persisted.
type Principal struct {
	// Username is the token subject.
	Username string

	// Authorities are the granted role names, sorted and de-duplicated.
	Authorities []string
}

// NewPrincipal creates a principal with a normalized authority set.
func NewPrincipal(username string, authorities []string) *Principal {
	return &Principal{
		Username:    username,
		Authorities: normalizeAuthorities(authorities),
	}
}

// HasAuthority checks if the principal holds the given authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Authorities, authority)
}

// HasRole checks if the principal holds the given role.
func (p *Principal) HasRole(role Role) bool {
	return p.HasAuthority(string(role))
}

// HasAnyRole checks if the principal holds at least one of the roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles checks if the principal holds every one of the roles.
func (p *Principal) HasAllRoles(roles ...Role) bool {
	for _, r := range roles {
		if !p.HasRole(r) {
			return false
		}
	}
	return true
}

// IsAdmin reports whether the principal holds ROLE_ADMIN.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// normalizeAuthorities trims empties, removes duplicates and sorts.
func normalizeAuthorities(authorities []string) []string {
	seen := make(map[string]struct{}, len(authorities))
	out := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
