package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/store"
	"github.com/jonwraymond/todoauth/validation"
)

// systemActor is recorded as the author of changes made without a
// principal, such as the bootstrap account.
const systemActor = "system"

// Service administers accounts.
type Service struct {
	users    Repository
	roles    auth.RoleCatalog
	assigner *auth.RoleAssigner
	hasher   Hasher
	validate *validation.Validator
	logger   observe.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRoleAssigner replaces the default role assigner.
func WithRoleAssigner(a *auth.RoleAssigner) Option {
	return func(s *Service) {
		if a != nil {
			s.assigner = a
		}
	}
}

// NewService creates a user service.
func NewService(users Repository, roles auth.RoleCatalog, hasher Hasher, opts ...Option) *Service {
	s := &Service{
		users:    users,
		roles:    roles,
		assigner: auth.NewRoleAssigner(),
		hasher:   hasher,
		validate: validation.New(),
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new account.
//
// The requested authorities are merged with the defaults, or replace them
// when overwrite is set. Either elevation requires actor to be an admin.
func (s *Service) Create(ctx context.Context, actor *auth.Principal, req CreateRequest, overwrite bool) (*store.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.assigner.Authorize(actor, req.Authorities, overwrite); err != nil {
		return nil, err
	}
	return s.create(ctx, actorName(actor), req, s.assigner.Assign(req.Authorities, overwrite))
}

func (s *Service) create(ctx context.Context, by string, req CreateRequest, roles []auth.Role) (*store.User, error) {
	if err := s.checkAvailable(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}
	catalog, err := s.assigner.Resolve(ctx, s.roles, roles)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("user: hash password: %w", err)
	}

	u := &store.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Email:        strings.TrimSpace(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Enabled:      true,
		CreatedBy:    by,
	}
	if err := s.users.Create(ctx, u, catalog); err != nil {
		return nil, mapStoreError(err, u.Username)
	}
	observe.ContextLogger(ctx, s.logger).Info(ctx, "user created",
		observe.Field{Key: "username", Value: u.Username},
		observe.Field{Key: "roles", Value: auth.RoleStrings(u.Roles)},
		observe.Field{Key: "by", Value: by},
	)
	return u, nil
}

func (s *Service) checkAvailable(ctx context.Context, username, email string) error {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	inUse, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if inUse {
		return ErrEmailInUse
	}
	return nil
}

// Get returns the account with the given username, ignoring case.
func (s *Service) Get(ctx context.Context, username string) (*store.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, mapStoreError(err, username)
	}
	return u, nil
}

// GetByEmail returns the account with the given e-mail, ignoring case.
func (s *Service) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, mapStoreError(err, email)
	}
	return u, nil
}

// List returns accounts matching the filter.
func (s *Service) List(ctx context.Context, f store.UserFilter) ([]*store.User, error) {
	return s.users.List(ctx, f)
}

// Update overwrites the names and e-mail of an account and re-hashes the
// password when one is given. The username and roles are unchanged.
func (s *Service) Update(ctx context.Context, actor *auth.Principal, username string, req UpdateRequest) (*store.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	return s.modify(ctx, actor, username, func(u *store.User) error {
		if req.Password != nil {
			if err := s.setPassword(u, *req.Password); err != nil {
				return err
			}
		}
		u.Email = strings.TrimSpace(req.Email)
		u.FirstName = strings.TrimSpace(req.FirstName)
		u.LastName = strings.TrimSpace(req.LastName)
		return nil
	})
}

// Patch changes only the fields set in req.
func (s *Service) Patch(ctx context.Context, actor *auth.Principal, username string, req PatchRequest) (*store.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	return s.modify(ctx, actor, username, func(u *store.User) error {
		if req.Password != nil {
			if err := s.setPassword(u, *req.Password); err != nil {
				return err
			}
		}
		if req.Email != nil {
			u.Email = strings.TrimSpace(*req.Email)
		}
		if req.FirstName != nil {
			u.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			u.LastName = strings.TrimSpace(*req.LastName)
		}
		return nil
	})
}

func (s *Service) modify(ctx context.Context, actor *auth.Principal, username string, apply func(*store.User) error) (*store.User, error) {
	u, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	oldEmail := u.Email
	if err := apply(u); err != nil {
		return nil, err
	}
	if !strings.EqualFold(oldEmail, u.Email) {
		inUse, err := s.users.ExistsByEmail(ctx, u.Email)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, ErrEmailInUse
		}
	}
	u.UpdatedBy = actorName(actor)
	if err := s.users.Update(ctx, u, nil); err != nil {
		return nil, mapStoreError(err, username)
	}
	observe.ContextLogger(ctx, s.logger).Info(ctx, "user updated",
		observe.Field{Key: "username", Value: u.Username},
		observe.Field{Key: "by", Value: u.UpdatedBy},
	)
	return u, nil
}

func (s *Service) setPassword(u *store.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("user: hash password: %w", err)
	}
	u.PasswordHash = hash
	return nil
}

// Delete removes an account and its role links.
func (s *Service) Delete(ctx context.Context, actor *auth.Principal, username string) error {
	if err := s.users.Delete(ctx, username); err != nil {
		return mapStoreError(err, username)
	}
	observe.ContextLogger(ctx, s.logger).Info(ctx, "user deleted",
		observe.Field{Key: "username", Value: username},
		observe.Field{Key: "by", Value: actorName(actor)},
	)
	return nil
}

// EnsureAdmin creates an administrator account unless the username
// already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, req CreateRequest) (bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return false, fmt.Errorf("user: bootstrap admin: %w", err)
	}
	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	roles := s.assigner.Assign([]auth.Role{auth.RoleAdmin}, false)
	if _, err := s.create(ctx, systemActor, req, roles); err != nil {
		return false, fmt.Errorf("user: bootstrap admin: %w", err)
	}
	return true, nil
}

func actorName(p *auth.Principal) string {
	if p == nil || p.Username == "" {
		return systemActor
	}
	return p.Username
}

// mapStoreError converts store errors to service errors.
func mapStoreError(err error, key string) error {
	var ce *store.ConflictError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	case errors.Is(err, store.ErrStaleVersion):
		return fmt.Errorf("%w: %s", ErrConflict, key)
	case errors.As(err, &ce) && ce.Column == "username":
		return ErrUsernameTaken
	case errors.As(err, &ce) && ce.Column == "email":
		return ErrEmailInUse
	default:
		return err
	}
}
