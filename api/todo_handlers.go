package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/todo"
	"github.com/jonwraymond/todoauth/validation"
)

// todoQuery reads ?description=, ?done= and ?sort=a,-b.
func todoQuery(r *http.Request) (todo.Query, error) {
	params := r.URL.Query()
	q := todo.Query{Description: params.Get("description")}
	if v := params.Get("done"); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			return todo.Query{}, &validation.Error{Fields: []validation.FieldError{
				{Field: "done", Message: "done must be true or false"},
			}}
		}
		q.Done = &done
	}
	if v := params.Get("sort"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				q.Sort = append(q.Sort, f)
			}
		}
	}
	return q, nil
}

func owner(r *http.Request) string {
	return auth.UsernameFromContext(r.Context())
}

func todoLocation(prefix, id string) string {
	return prefix + url.PathEscape(id)
}

func (a *API) listTodos(w http.ResponseWriter, r *http.Request) {
	q, err := todoQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	todos, err := a.deps.Todos.List(r.Context(), owner(r), q)
	respond(w, r, http.StatusOK, todos, err)
}

func (a *API) getTodo(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.Todos.Get(r.Context(), r.PathValue("id"), owner(r))
	respond(w, r, http.StatusOK, t, err)
}

func (a *API) createTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.Todos.Create(r.Context(), owner(r), req)
	if err == nil {
		w.Header().Set("Location", todoLocation("/api/todos/", t.ID))
	}
	respond(w, r, http.StatusCreated, t, err)
}

func (a *API) updateTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.Todos.Update(r.Context(), r.PathValue("id"), owner(r), req)
	respond(w, r, http.StatusOK, t, err)
}

func (a *API) patchTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.PatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.Todos.Patch(r.Context(), r.PathValue("id"), owner(r), req)
	respond(w, r, http.StatusOK, t, err)
}

func (a *API) deleteTodo(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.Todos.Delete(r.Context(), r.PathValue("id"), owner(r))
	respond(w, r, http.StatusAccepted, t, err)
}

func (a *API) adminListTodos(w http.ResponseWriter, r *http.Request) {
	q, err := todoQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	todos, err := a.deps.AdminTodos.List(r.Context(), q)
	respond(w, r, http.StatusOK, todos, err)
}

func (a *API) adminGetTodo(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.AdminTodos.Get(r.Context(), r.PathValue("id"))
	respond(w, r, http.StatusOK, t, err)
}

// adminCreateTodo stores the todo under the calling admin.
func (a *API) adminCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.AdminTodos.Create(r.Context(), owner(r), req)
	if err == nil {
		w.Header().Set("Location", todoLocation("/api/admin/todos/", t.ID))
	}
	respond(w, r, http.StatusCreated, t, err)
}

func (a *API) adminUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.AdminTodos.Update(r.Context(), r.PathValue("id"), req)
	respond(w, r, http.StatusOK, t, err)
}

func (a *API) adminPatchTodo(w http.ResponseWriter, r *http.Request) {
	var req todo.PatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.deps.AdminTodos.Patch(r.Context(), r.PathValue("id"), req)
	respond(w, r, http.StatusOK, t, err)
}

func (a *API) adminDeleteTodo(w http.ResponseWriter, r *http.Request) {
	t, err := a.deps.AdminTodos.Delete(r.Context(), r.PathValue("id"))
	respond(w, r, http.StatusAccepted, t, err)
}

// ClearResult is the body of DELETE /api/admin/todos.
type ClearResult struct {
	Deleted int64 `json:"deleted"`
}

func (a *API) adminClearTodos(w http.ResponseWriter, r *http.Request) {
	n, err := a.deps.AdminTodos.Clear(r.Context())
	respond(w, r, http.StatusAccepted, ClearResult{Deleted: n}, err)
}

func respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, body)
}

// todoEvents streams created todos as server-sent events. Non-admins
// only see their own todos. A Last-Event-ID header resumes after that
// event when the broker still holds it.
func (a *API) todoEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("api: streaming unsupported by %T", w))
		return
	}
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	logger := observe.ContextLogger(ctx, a.deps.Logger)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	a.metrics.EventSubscribers.Inc()
	defer a.metrics.EventSubscribers.Dec()

	// The writer is shared between the subscription and the heartbeat.
	out := make(chan string, 16)
	subCtx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	subscribed := true
	defer func() {
		cancel()
		if subscribed {
			<-errc
		}
	}()

	go func() {
		errc <- a.deps.Broker.Subscribe(subCtx, events.TopicTodoCreated, r.Header.Get("Last-Event-ID"),
			func(ctx context.Context, env events.Envelope) error {
				ev, err := events.DecodeTodoCreated(env)
				if err != nil {
					logger.Warn(ctx, "skipping undecodable event", observe.Field{Key: "event_id", Value: env.ID}, observe.ErrorField(err))
					return nil
				}
				if !p.IsAdmin() && !strings.EqualFold(ev.Owner, p.Username) {
					return nil
				}
				frame := fmt.Sprintf("id: %s\nevent: created\ndata: {\"id\":%q}\n\n", env.ID, ev.ID)
				select {
				case out <- frame:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
	}()

	heartbeat := time.NewTicker(a.deps.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case frame := <-out:
			if _, err := fmt.Fprint(w, frame); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case err := <-errc:
			subscribed = false
			if err != nil && ctx.Err() == nil {
				logger.Warn(ctx, "event stream ended", observe.ErrorField(err))
			}
			return
		case <-ctx.Done():
			return
		}
	}
}
