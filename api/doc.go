// Package api is the HTTP surface of todoauth.
//
// The API listener serves the login endpoint, token re-issue, user
// administration, owner-scoped and admin todo routes, and a server-sent
// event stream of created todos. Every route except POST /authenticate
// goes through auth.Middleware. The ops listener (NewOpsHandler) serves
// health probes and Prometheus metrics without authentication and is
// meant to be bound to an internal address.
package api
