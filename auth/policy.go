package auth

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Access is what a rule requires of the caller.
type Access int

const (
	// AccessAuthenticated requires a valid token and nothing more.
	AccessAuthenticated Access = iota

	// AccessPermitAll admits anonymous callers.
	AccessPermitAll

	// AccessRoles requires a valid token carrying the rule's roles.
	AccessRoles
)

// String returns the access name.
func (a Access) String() string {
	switch a {
	case AccessPermitAll:
		return "permitAll"
	case AccessRoles:
		return "hasRoles"
	default:
		return "authenticated"
	}
}

// MatchMode selects how a rule's roles are combined.
type MatchMode int

const (
	// MatchAny requires at least one role.
	MatchAny MatchMode = iota

	// MatchAll requires every role.
	MatchAll
)

// Rule maps a request pattern to an access requirement.
//
// Pattern segments are matched case-insensitively. A "*" segment matches
// exactly one path segment and a trailing "**" matches the rest of the
// path, including nothing.
type Rule struct {
	// Method restricts the rule to one HTTP method. Empty matches any.
	Method string

	Pattern string
	Access  Access
	Roles   []Role
	Match   MatchMode
}

// PermitAll creates a rule admitting anonymous callers.
func PermitAll(method, pattern string) Rule {
	return Rule{Method: method, Pattern: pattern, Access: AccessPermitAll}
}

// RequireAuth creates a rule requiring any valid token.
func RequireAuth(pattern string) Rule {
	return Rule{Pattern: pattern, Access: AccessAuthenticated}
}

// RequireAnyRole creates a rule requiring one of roles.
func RequireAnyRole(pattern string, roles ...Role) Rule {
	return Rule{Pattern: pattern, Access: AccessRoles, Roles: roles, Match: MatchAny}
}

// RequireAllRoles creates a rule requiring all of roles.
func RequireAllRoles(pattern string, roles ...Role) Rule {
	return Rule{Pattern: pattern, Access: AccessRoles, Roles: roles, Match: MatchAll}
}

// Matches reports whether the rule applies to the request.
func (r Rule) Matches(method, p string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchSegments(splitPath(r.Pattern), splitPath(p))
}

// String renders the rule for logs.
func (r Rule) String() string {
	method := r.Method
	if method == "" {
		method = "*"
	}
	if r.Access == AccessRoles {
		mode := "any"
		if r.Match == MatchAll {
			mode = "all"
		}
		return fmt.Sprintf("%s %s %s(%s %v)", method, r.Pattern, r.Access, mode, r.Roles)
	}
	return fmt.Sprintf("%s %s %s", method, r.Pattern, r.Access)
}

// Policy is an ordered rule table. The first matching rule wins.
// It is immutable and safe for concurrent use.
type Policy struct {
	rules []Rule
}

// NewPolicy validates and builds a policy.
//
// A rule whose requests are all matched by an earlier rule is rejected
// with ErrRuleShadowed, so more specific prefixes must come before their
// parents. At most one rule may permit anonymous access.
func NewPolicy(rules ...Rule) (*Policy, error) {
	permits := 0
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("%w: pattern %q must start with /", ErrInvalidRule, r.Pattern)
		}
		if r.Access == AccessRoles && len(r.Roles) == 0 {
			return nil, fmt.Errorf("%w: %s has no roles", ErrInvalidRule, r)
		}
		if r.Access == AccessPermitAll {
			permits++
			if permits > 1 {
				return nil, fmt.Errorf("%w: more than one anonymous rule (%s)", ErrInvalidRule, r)
			}
		}
		for _, earlier := range rules[:i] {
			if earlier.covers(r) {
				return nil, fmt.Errorf("%w: %s by %s", ErrRuleShadowed, r, earlier)
			}
		}
	}
	return &Policy{rules: append([]Rule(nil), rules...)}, nil
}

// DefaultPolicy returns the application rule table.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(
		RequireAnyRole("/api/admin/**", RoleAdmin),
		RequireAnyRole("/api/**", RoleAdmin, RoleUser),
		RequireAnyRole("/jwt/**", RoleAdmin),
		PermitAll(http.MethodPost, "/authenticate"),
		RequireAuth("/**"),
	)
	if err != nil {
		panic(err)
	}
	return p
}

// Rules returns a copy of the rule table.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Match returns the first rule that applies. When no rule applies the
// request requires authentication and ok is false.
func (p *Policy) Match(method, reqPath string) (rule Rule, ok bool) {
	reqPath = cleanPath(reqPath)
	for _, r := range p.rules {
		if r.Matches(method, reqPath) {
			return r, true
		}
	}
	return RequireAuth("/**"), false
}

// Authorize checks who against the rule matching method and reqPath. A nil
// who is anonymous.
func (p *Policy) Authorize(who *Principal, method, reqPath string) error {
	rule, _ := p.Match(method, reqPath)
	deny := func() error {
		e := &DeniedError{Method: method, Path: reqPath, Rule: rule}
		if who != nil {
			e.Username = who.Username
		}
		return e
	}

	switch {
	case rule.Access == AccessPermitAll:
		return nil
	case who == nil:
		return deny()
	case rule.Access == AccessAuthenticated:
		return nil
	case rule.Match == MatchAll && who.HasAllRoles(rule.Roles...):
		return nil
	case rule.Match == MatchAny && who.HasAnyRole(rule.Roles...):
		return nil
	}
	return deny()
}

// covers reports whether every request matched by later is matched by r.
func (r Rule) covers(later Rule) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, later.Method) {
		return false
	}
	return coversSegments(splitPath(r.Pattern), splitPath(later.Pattern))
}

func coversSegments(a, b []string) bool {
	for i, seg := range a {
		if seg == "**" {
			return true
		}
		if i >= len(b) || b[i] == "**" {
			return false
		}
		if seg != "*" && seg != b[i] {
			return false
		}
	}
	return len(a) == len(b)
}

func matchSegments(pattern, p []string) bool {
	for i, seg := range pattern {
		if seg == "**" {
			return true
		}
		if i >= len(p) {
			return false
		}
		if seg != "*" && seg != p[i] {
			return false
		}
	}
	return len(pattern) == len(p)
}

func splitPath(p string) []string {
	p = strings.Trim(strings.ToLower(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
