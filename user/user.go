// Package user administers accounts: creation with role assignment,
// lookups, full and partial updates, and deletion.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/store"
)

// Conflict messages are returned to clients verbatim.
var (
	ErrUsernameTaken = errors.New("Username is taken.")     //nolint:staticcheck // client-facing message
	ErrEmailInUse    = errors.New("E-mail already in use.") //nolint:staticcheck // client-facing message
	ErrNotFound      = errors.New("user: not found")
	ErrConflict      = errors.New("user: modified concurrently")
)

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Username    string      `json:"username" validate:"notblank,min=8,max=20"`
	Password    string      `json:"password" validate:"notblank,min=8,max=20"`
	Email       string      `json:"email" validate:"required,email"`
	FirstName   string      `json:"firstName" validate:"notblank"`
	LastName    string      `json:"lastName" validate:"notblank"`
	Authorities []auth.Role `json:"authorities,omitempty"`
}

// UpdateRequest overwrites every mutable field. A nil Password keeps the
// stored hash.
type UpdateRequest struct {
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=20"`
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"firstName" validate:"notblank"`
	LastName  string  `json:"lastName" validate:"notblank"`
}

// PatchRequest changes only the non-nil fields.
type PatchRequest struct {
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=20"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,notblank"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,notblank"`
}

// View is the public representation of an account. It never carries the
// password hash.
type View struct {
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	FullName    string      `json:"fullName"`
	Authorities []auth.Role `json:"authorities"`
	Enabled     bool        `json:"enabled"`
	Locked      bool        `json:"locked"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ViewOf converts a stored user.
func ViewOf(u *store.User) View {
	roles := u.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	return View{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Authorities: roles,
		Enabled:     u.Enabled,
		Locked:      u.Locked,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Views converts a slice of stored users.
func Views(users []*store.User) []View {
	out := make([]View, len(users))
	for i, u := range users {
		out[i] = ViewOf(u)
	}
	return out
}

// Repository is the storage the service needs. *store.Users satisfies it.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*store.User, error)
	GetByEmail(ctx context.Context, email string) (*store.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f store.UserFilter) ([]*store.User, error)
	Create(ctx context.Context, u *store.User, roles []auth.CatalogRole) error
	Update(ctx context.Context, u *store.User, roles []auth.CatalogRole) error
	Delete(ctx context.Context, username string) error
}

// Hasher hashes new passwords.
type Hasher interface {
	Hash(password string) (string, error)
}

var _ Repository = (*store.Users)(nil)
