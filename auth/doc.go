// Package auth implements stateless bearer-token authentication and
// path-based authorization.
//
// A SigningKey is derived once at startup and injected into a Codec, which
// issues and parses HMAC-signed JWTs. CredentialAuthenticator exchanges a
// username and password for a token. TokenAuthenticator turns a presented
// token into exactly one of three outcomes: authenticated, unauthorized or
// forbidden. Policy is the ordered rule table consulted before token
// validation, and Middleware ties both to net/http. RoleAssigner computes
// the roles stored for new accounts.
package auth
