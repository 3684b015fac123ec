package secret

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const refPrefix = "secretref:"

// Ref is a parsed "secretref:<provider>:<key>" value.
type Ref struct {
	Provider string
	Key      string
}

func (r Ref) String() string { return refPrefix + r.Provider + ":" + r.Key }

// ParseRef reports whether value is a complete reference.
func ParseRef(value string) (Ref, bool) {
	rest, ok := strings.CutPrefix(value, refPrefix)
	if !ok {
		return Ref{}, false
	}
	provider, key, ok := strings.Cut(rest, ":")
	if !ok || provider == "" || key == "" {
		return Ref{}, false
	}
	return Ref{Provider: provider, Key: key}, true
}

// Resolver turns config values into secrets.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver over providers. A later provider with
// the same name replaces an earlier one.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Default returns a resolver with the env provider and a file provider
// rooted at dir.
func Default(dir string) *Resolver {
	return NewResolver(NewEnvProvider(), NewFileProvider(dir))
}

// Providers lists the provider names in order.
func (r *Resolver) Providers() []string {
	return slices.Sorted(maps.Keys(r.providers))
}

// Resolve expands value against the environment and, when the result is
// a reference, returns the referenced secret. A reference that yields ""
// is an error.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := Expand(value)
	if err != nil {
		return "", err
	}
	ref, ok := ParseRef(expanded)
	if !ok {
		return expanded, nil
	}
	p, ok := r.providers[ref.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, ref.Provider)
	}
	v, err := p.Resolve(ctx, ref.Key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, ref)
	}
	return v, nil
}

// ResolveFields resolves every non-empty pointed-to value in place, in
// key order. Errors name the key, never the value.
func (r *Resolver) ResolveFields(ctx context.Context, fields map[string]*string) error {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		ptr := fields[k]
		if ptr == nil || *ptr == "" {
			continue
		}
		v, err := r.Resolve(ctx, *ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", k, err)
		}
		*ptr = v
	}
	return nil
}
