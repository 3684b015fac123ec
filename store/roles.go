package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/cache"
)

// RoleCatalog reads the roles table. It implements auth.RoleCatalog.
type RoleCatalog struct {
	db *DB
}

// FindRolesByName returns the catalog records for the given names.
// Names not in the catalog are omitted.
func (c *RoleCatalog) FindRolesByName(ctx context.Context, names []auth.Role) ([]auth.CatalogRole, error) {
	if len(names) == 0 {
		return []auth.CatalogRole{}, nil
	}
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = string(n)
	}
	rows, err := c.db.sql.QueryContext(ctx,
		`SELECT id, name FROM roles WHERE name IN (`+placeholders(len(names))+`) ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find roles: %w", err)
	}
	defer rows.Close()

	out := []auth.CatalogRole{}
	for rows.Next() {
		var (
			cr   auth.CatalogRole
			name string
		)
		if err := rows.Scan(&cr.ID, &name); err != nil {
			return nil, fmt.Errorf("store: scan role: %w", err)
		}
		cr.Name = auth.Role(name)
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: find roles: %w", err)
	}
	return out, nil
}

var errRoleMissing = errors.New("store: role missing from catalog")

// CachedRoleCatalog caches role records from another catalog. Concurrent
// misses for the same role share one lookup. Missing roles are not cached.
type CachedRoleCatalog struct {
	next  auth.RoleCatalog
	cache *cache.TTL[auth.Role, auth.CatalogRole]
}

// NewCachedRoleCatalog wraps next with a cache using policy.
func NewCachedRoleCatalog(next auth.RoleCatalog, policy cache.Policy) *CachedRoleCatalog {
	return &CachedRoleCatalog{
		next:  next,
		cache: cache.New[auth.Role, auth.CatalogRole](policy),
	}
}

// FindRolesByName implements auth.RoleCatalog.
func (c *CachedRoleCatalog) FindRolesByName(ctx context.Context, names []auth.Role) ([]auth.CatalogRole, error) {
	out := make([]auth.CatalogRole, 0, len(names))
	for _, name := range names {
		cr, err := c.cache.Load(ctx, name, func(ctx context.Context) (auth.CatalogRole, error) {
			found, err := c.next.FindRolesByName(ctx, []auth.Role{name})
			if err != nil {
				return auth.CatalogRole{}, err
			}
			for _, f := range found {
				if f.Name == name {
					return f, nil
				}
			}
			return auth.CatalogRole{}, errRoleMissing
		})
		if errors.Is(err, errRoleMissing) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

// Invalidate drops every cached role.
func (c *CachedRoleCatalog) Invalidate() {
	c.cache.Purge()
}

// Stats reports cache hits and misses.
func (c *CachedRoleCatalog) Stats() cache.Stats {
	return c.cache.Stats()
}

func sortedRoles(roles []auth.Role) []auth.Role {
	slices.Sort(roles)
	return slices.Compact(roles)
}
