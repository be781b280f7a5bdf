package domain

import "time"

// User is a static registry record. PasswordHash never leaves the credential store.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// TokenKind tags which namespace a claim belongs to.
type TokenKind string

const (
	TokenKindSession    TokenKind = "session"
	TokenKindCapability TokenKind = "capability"
)

// CapabilityClaim grants read access to exactly one filename.
type CapabilityClaim struct {
	Resource  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type CredentialStore interface {
	Verify(username, plaintext string) bool
}

type TokenIssuer interface {
	IssueSession(username string) (string, error)
	ParseSession(token string) (string, error)
	IssueCapability(filename string) (string, error)
	ParseCapability(token string) (CapabilityClaim, error)
}

type Clock interface {
	Now() time.Time
}

// ShortLinkBackend persists the whole code->url mapping at once.
type ShortLinkBackend interface {
	Load() (map[string]string, error)
	Save(links map[string]string) error
}

type ShortLinks interface {
	Create(targetURL string) (string, error)
	Resolve(code string) (string, error)
}
