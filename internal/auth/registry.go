package auth

import (
	"fmt"
	"strings"

	"files-board/internal/domain"
)

// Registry is the static username -> password hash store loaded at startup.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	hasher PasswordHasher
	users  map[string]string
	// decoy is verified against when the username is unknown, so a miss costs
	// the same as a wrong password.
	decoy string
}

func NewRegistry(hasher PasswordHasher, users []domain.User) (*Registry, error) {
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}

	byName := make(map[string]string, len(users))
	for _, u := range users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return nil, fmt.Errorf("user with empty username in registry")
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate user %q in registry", name)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("user %q has no password hash", name)
		}
		byName[name] = u.PasswordHash
	}

	decoy, err := hasher.Hash("decoy-password-for-unknown-users")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare decoy hash: %w", err)
	}

	return &Registry{hasher: hasher, users: byName, decoy: decoy}, nil
}

func (r *Registry) Verify(username, plaintext string) bool {
	digest, ok := r.users[username]
	if !ok {
		r.hasher.Verify(plaintext, r.decoy)
		return false
	}
	return r.hasher.Verify(plaintext, digest)
}

func (r *Registry) Len() int {
	return len(r.users)
}
