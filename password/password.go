// Package password hashes and verifies account passwords.
//
// New hashes are Argon2id in PHC format. Bcrypt hashes ($2a$, $2b$, $2y$)
// are still verified so accounts created by older deployments keep
// working.
package password

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for password operations.
var (
	ErrUnknownHashType = errors.New("password: unknown hash type")
	ErrEmptyPassword   = errors.New("password: empty password")
)

// HashType identifies the algorithm behind a stored hash.
type HashType string

const (
	HashArgon2id HashType = "argon2id"
	HashBcrypt   HashType = "bcrypt"
	HashUnknown  HashType = "unknown"
)

// DefaultParams are the OWASP minimum Argon2id parameters.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1
var DefaultParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher creates and verifies password hashes.
type Hasher struct {
	params *argon2id.Params
}

// NewHasher creates a hasher. A nil params uses DefaultParams.
func NewHasher(params *argon2id.Params) *Hasher {
	if params == nil {
		params = DefaultParams
	}
	return &Hasher{params: params}
}

// Hash returns an Argon2id hash of password.
// Format: $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return hash, nil
}

// Matches reports whether password matches the stored hash.
// It returns (false, nil) on mismatch and an error only for unusable hashes.
func (h *Hasher) Matches(password, hash string) (bool, error) {
	switch DetectHashType(hash) {
	case HashArgon2id:
		return safeArgon2idCompare(password, hash)
	case HashBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("password: bcrypt: %w", err)
		}
	default:
		return false, ErrUnknownHashType
	}
}

// NeedsRehash reports whether hash should be replaced by a fresh Argon2id
// hash on the next successful login.
func (h *Hasher) NeedsRehash(hash string) bool {
	if DetectHashType(hash) != HashArgon2id {
		return true
	}
	params, _, _, err := argon2id.DecodeHash(hash)
	if err != nil {
		return true
	}
	return params.Memory != h.params.Memory ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism
}

// DetectHashType identifies the hash algorithm used for a stored hash.
func DetectHashType(hash string) HashType {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return HashArgon2id
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return HashBcrypt
	default:
		return HashUnknown
	}
}

// safeArgon2idCompare converts panics on malformed parameters (t=0, p=0)
// into errors.
func safeArgon2idCompare(password, hash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("password: invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(password, hash)
}
