// Package secret keeps credentials out of the config file.
//
// A config value is first expanded against the environment, then, if the
// whole value is a reference, replaced by what the named provider returns:
//
//	secretref:env:TODOAUTH_JWT_SECRET
//	secretref:file:/run/secrets/jwt
//
// The JWT signing secret, the bootstrap admin password and the Redis
// address are resolved this way.
package secret
