package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/store"
	"github.com/jonwraymond/todoauth/user"
)

// listUsers answers GET /api/users. ?username= or ?email= narrows the
// result to one account and answers 404 when it does not exist.
func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	var (
		u   *store.User
		err error
	)
	switch {
	case q.Has("username"):
		u, err = a.deps.Users.Get(ctx, q.Get("username"))
	case q.Has("email"):
		u, err = a.deps.Users.GetByEmail(ctx, q.Get("email"))
	default:
		users, err := a.deps.Users.List(ctx, store.UserFilter{})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Views(users))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ViewOf(u))
}

func (a *API) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := a.deps.Users.GetByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ViewOf(u))
}

// createUser answers POST /api/users. ?overwrite=true replaces the
// default roles with the requested ones.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req user.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))

	u, err := a.deps.Users.Create(r.Context(), auth.PrincipalFromContext(r.Context()), req, overwrite)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/users/"+url.PathEscape(u.Email))
	writeJSON(w, http.StatusCreated, user.ViewOf(u))
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.deps.Users.Update(r.Context(), auth.PrincipalFromContext(r.Context()), r.PathValue("username"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ViewOf(u))
}

func (a *API) patchUser(w http.ResponseWriter, r *http.Request) {
	var req user.PatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.deps.Users.Patch(r.Context(), auth.PrincipalFromContext(r.Context()), r.PathValue("username"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ViewOf(u))
}

// deleteUser answers 202 with the removed account.
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PathValue("username")
	u, err := a.deps.Users.Get(ctx, username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.deps.Users.Delete(ctx, auth.PrincipalFromContext(ctx), username); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, user.ViewOf(u))
}
