package auth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"files-board/internal/domain"
)

// TokenConfig holds the two independent signing secrets and lifetimes.
type TokenConfig struct {
	SessionSecret    []byte
	CapabilitySecret []byte
	SessionTTL       time.Duration
	CapabilityTTL    time.Duration
	Clock            domain.Clock
}

// Tokens issues and parses session and capability tokens. Each kind is an
// HS256 JWT signed with its own secret and carries its kind in the "typ"
// claim, so neither the secret nor the payload of one kind is accepted as the other.
type Tokens struct {
	sessionSecret    []byte
	capabilitySecret []byte
	sessionTTL       time.Duration
	capabilityTTL    time.Duration
	clock            domain.Clock
}

type sessionClaims struct {
	Kind domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

type capabilityClaims struct {
	Kind     domain.TokenKind `json:"typ"`
	Filename string           `json:"filename"`
	jwt.RegisteredClaims
}

func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if len(cfg.SessionSecret) == 0 || len(cfg.CapabilitySecret) == 0 {
		return nil, fmt.Errorf("both session and capability secrets are required")
	}
	if bytes.Equal(cfg.SessionSecret, cfg.CapabilitySecret) {
		return nil, fmt.Errorf("session and capability secrets must differ")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = domain.SessionTTL
	}
	if cfg.CapabilityTTL <= 0 {
		cfg.CapabilityTTL = domain.CapabilityTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	return &Tokens{
		sessionSecret:    cfg.SessionSecret,
		capabilitySecret: cfg.CapabilitySecret,
		sessionTTL:       cfg.SessionTTL,
		capabilityTTL:    cfg.CapabilityTTL,
		clock:            cfg.Clock,
	}, nil
}

func (t *Tokens) IssueSession(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("session subject is required")
	}
	now := t.clock.Now()
	claims := sessionClaims{
		Kind: domain.TokenKindSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.sessionTTL)),
		},
	}
	return t.sign(claims, t.sessionSecret)
}

func (t *Tokens) ParseSession(token string) (string, error) {
	var claims sessionClaims
	if err := t.parse(token, &claims, t.sessionSecret); err != nil {
		return "", err
	}
	if claims.Kind != domain.TokenKindSession || claims.Subject == "" {
		return "", fmt.Errorf("not a session token: %w", domain.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

func (t *Tokens) IssueCapability(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("capability resource is required")
	}
	now := t.clock.Now()
	claims := capabilityClaims{
		Kind:     domain.TokenKindCapability,
		Filename: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.capabilityTTL)),
		},
	}
	return t.sign(claims, t.capabilitySecret)
}

func (t *Tokens) ParseCapability(token string) (domain.CapabilityClaim, error) {
	var claims capabilityClaims
	if err := t.parse(token, &claims, t.capabilitySecret); err != nil {
		return domain.CapabilityClaim{}, err
	}
	if claims.Kind != domain.TokenKindCapability || claims.Filename == "" {
		return domain.CapabilityClaim{}, fmt.Errorf("not a capability token: %w", domain.ErrTokenInvalid)
	}

	out := domain.CapabilityClaim{Resource: claims.Filename}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (t *Tokens) sign(claims jwt.Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) parse(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return domain.ErrTokenMissing
	}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%v: %w", err, domain.ErrTokenExpired)
	default:
		return fmt.Errorf("%v: %w", err, domain.ErrTokenInvalid)
	}
}
