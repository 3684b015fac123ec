// Package todo manages todo items. Service scopes every operation to an
// owner; AdminService ignores ownership and can clear all items.
package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/store"
	"github.com/jonwraymond/todoauth/validation"
)

// ErrNotFound is returned for missing todos and for todos owned by
// someone else.
var ErrNotFound = errors.New("todo: not found")

// ErrConflict is returned when a todo changed since it was read.
var ErrConflict = errors.New("todo: modified concurrently")

// Todo is the public representation of a todo item. The owner is not
// part of it.
type Todo struct {
	ID          string    `json:"id"`
	Done        bool      `json:"done"`
	Description string    `json:"description"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func fromStore(t *store.Todo) *Todo {
	return &Todo{
		ID:          t.ID,
		Done:        t.Done,
		Description: t.Description,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromStoreList(ts []*store.Todo) []*Todo {
	out := make([]*Todo, len(ts))
	for i, t := range ts {
		out[i] = fromStore(t)
	}
	return out
}

// CreateRequest is the body of a create call. A nil Done means false.
type CreateRequest struct {
	Done        *bool  `json:"done,omitempty"`
	Description string `json:"description" validate:"notblank,max=1000"`
}

// UpdateRequest overwrites both fields. A nil Done means false.
type UpdateRequest struct {
	Done        *bool  `json:"done"`
	Description string `json:"description" validate:"notblank,max=1000"`
}

// PatchRequest changes only the non-nil fields.
type PatchRequest struct {
	Done        *bool   `json:"done,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,notblank,max=1000"`
}

// Query filters and orders list results.
type Query struct {
	Description string
	Done        *bool
	Sort        []string
}

// Repository is the storage the services need. *store.Todos satisfies it.
type Repository interface {
	List(ctx context.Context, q store.TodoQuery) ([]*store.Todo, error)
	Get(ctx context.Context, id, owner string) (*store.Todo, error)
	Create(ctx context.Context, t *store.Todo) error
	Update(ctx context.Context, t *store.Todo) error
	Delete(ctx context.Context, id, owner string) error
	Clear(ctx context.Context) (int64, error)
}

var _ Repository = (*store.Todos)(nil)

// core holds the operations shared by both services. An empty owner
// means any owner.
type core struct {
	repo     Repository
	broker   events.Broker
	validate *validation.Validator
	logger   observe.Logger
	newID    func() string
}

// Option configures the services.
type Option func(*core)

// WithLogger sets the service logger.
func WithLogger(l observe.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *core) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func newCore(repo Repository, broker events.Broker, opts []Option) core {
	c := core{
		repo:     repo,
		broker:   broker,
		validate: validation.New(),
		logger:   observe.NopLogger(),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *core) list(ctx context.Context, owner string, q Query) ([]*Todo, error) {
	ts, err := c.repo.List(ctx, store.TodoQuery{
		Owner:       owner,
		Description: strings.TrimSpace(q.Description),
		Done:        q.Done,
		Sort:        q.Sort,
	})
	if err != nil {
		return nil, err
	}
	return fromStoreList(ts), nil
}

func (c *core) get(ctx context.Context, id, owner string) (*store.Todo, error) {
	t, err := c.repo.Get(ctx, id, owner)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	return t, nil
}

func (c *core) create(ctx context.Context, owner string, req CreateRequest) (*Todo, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, err
	}
	t := &store.Todo{
		ID:          c.newID(),
		Done:        req.Done != nil && *req.Done,
		Description: strings.TrimSpace(req.Description),
		Owner:       owner,
	}
	if err := c.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	logger := observe.ContextLogger(ctx, c.logger)
	if c.broker != nil {
		// The todo is stored; a failed notification is logged, not returned.
		if _, err := events.PublishTodoCreated(ctx, c.broker, events.TodoCreated{ID: t.ID, Owner: owner}); err != nil {
			logger.Warn(ctx, "publish todo created failed",
				observe.Field{Key: "todo_id", Value: t.ID}, observe.ErrorField(err))
		}
	}
	logger.Debug(ctx, "todo created", observe.Field{Key: "todo_id", Value: t.ID})
	return fromStore(t), nil
}

func (c *core) update(ctx context.Context, id, owner string, req UpdateRequest) (*Todo, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, err
	}
	return c.modify(ctx, id, owner, func(t *store.Todo) {
		t.Done = req.Done != nil && *req.Done
		t.Description = strings.TrimSpace(req.Description)
	})
}

func (c *core) patch(ctx context.Context, id, owner string, req PatchRequest) (*Todo, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, err
	}
	return c.modify(ctx, id, owner, func(t *store.Todo) {
		if req.Done != nil {
			t.Done = *req.Done
		}
		if req.Description != nil {
			t.Description = strings.TrimSpace(*req.Description)
		}
	})
}

func (c *core) modify(ctx context.Context, id, owner string, apply func(*store.Todo)) (*Todo, error) {
	t, err := c.get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	apply(t)
	if err := c.repo.Update(ctx, t); err != nil {
		return nil, mapStoreError(err, id)
	}
	return fromStore(t), nil
}

func (c *core) delete(ctx context.Context, id, owner string) (*Todo, error) {
	t, err := c.get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if err := c.repo.Delete(ctx, id, owner); err != nil {
		return nil, mapStoreError(err, id)
	}
	return fromStore(t), nil
}

func mapStoreError(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, store.ErrStaleVersion):
		return fmt.Errorf("%w: %s", ErrConflict, id)
	default:
		return err
	}
}
