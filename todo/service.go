package todo

import (
	"context"
	"errors"

	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/observe"
)

// ErrNoOwner is returned when an owner-scoped call has no owner.
var ErrNoOwner = errors.New("todo: owner is required")

// Service manages the todos of one owner per call.
type Service struct {
	core
}

// NewService creates an owner-scoped service. A nil broker disables
// created events.
func NewService(repo Repository, broker events.Broker, opts ...Option) *Service {
	return &Service{core: newCore(repo, broker, opts)}
}

// List returns the owner's todos.
func (s *Service) List(ctx context.Context, owner string, q Query) ([]*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.list(ctx, owner, q)
}

// Get returns one of the owner's todos.
func (s *Service) Get(ctx context.Context, id, owner string) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	t, err := s.get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	return fromStore(t), nil
}

// Create stores a todo for owner and publishes a TodoCreated event.
func (s *Service) Create(ctx context.Context, owner string, req CreateRequest) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.create(ctx, owner, req)
}

// Update overwrites one of the owner's todos.
func (s *Service) Update(ctx context.Context, id, owner string, req UpdateRequest) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.update(ctx, id, owner, req)
}

// Patch changes the set fields of one of the owner's todos.
func (s *Service) Patch(ctx context.Context, id, owner string, req PatchRequest) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.patch(ctx, id, owner, req)
}

// Delete removes one of the owner's todos and returns it.
func (s *Service) Delete(ctx context.Context, id, owner string) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.delete(ctx, id, owner)
}

// AdminService manages every todo regardless of owner.
type AdminService struct {
	core
}

// NewAdminService creates a service that ignores ownership.
func NewAdminService(repo Repository, broker events.Broker, opts ...Option) *AdminService {
	return &AdminService{core: newCore(repo, broker, opts)}
}

// List returns todos of every owner.
func (s *AdminService) List(ctx context.Context, q Query) ([]*Todo, error) {
	return s.list(ctx, "", q)
}

// Get returns any todo.
func (s *AdminService) Get(ctx context.Context, id string) (*Todo, error) {
	t, err := s.get(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return fromStore(t), nil
}

// Create stores a todo owned by owner.
func (s *AdminService) Create(ctx context.Context, owner string, req CreateRequest) (*Todo, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	return s.create(ctx, owner, req)
}

// Update overwrites any todo.
func (s *AdminService) Update(ctx context.Context, id string, req UpdateRequest) (*Todo, error) {
	return s.update(ctx, id, "", req)
}

// Patch changes the set fields of any todo.
func (s *AdminService) Patch(ctx context.Context, id string, req PatchRequest) (*Todo, error) {
	return s.patch(ctx, id, "", req)
}

// Delete removes any todo and returns it.
func (s *AdminService) Delete(ctx context.Context, id string) (*Todo, error) {
	return s.delete(ctx, id, "")
}

// Clear removes every todo and returns how many were removed.
func (s *AdminService) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	observe.ContextLogger(ctx, s.logger).Warn(ctx, "todos cleared", observe.Field{Key: "count", Value: n})
	return n, nil
}
