// Package shortlink maps short alphanumeric codes to destination URLs.
package shortlink

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"files-board/internal/domain"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// largest multiple of len(alphabet) that fits in a byte, for unbiased sampling
const sampleLimit = 256 - 256%len(alphabet)

const defaultMaxAttempts = 5

type Options struct {
	CodeLength  int
	MaxAttempts int
	// Random defaults to crypto/rand.
	Random io.Reader
}

// Index serializes every read-modify-write against the backend, so concurrent
// Create calls never lose each other's entries.
type Index struct {
	backend     domain.ShortLinkBackend
	codeLength  int
	maxAttempts int
	random      io.Reader

	mu sync.Mutex
}

func NewIndex(backend domain.ShortLinkBackend, opts Options) (*Index, error) {
	if backend == nil {
		return nil, fmt.Errorf("short link backend is required")
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = domain.DefaultShortCodeLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	return &Index{
		backend:     backend,
		codeLength:  opts.CodeLength,
		maxAttempts: opts.MaxAttempts,
		random:      opts.Random,
	}, nil
}

// Create stores targetURL under a fresh code. A generated code that is already
// taken is discarded and another one drawn, up to MaxAttempts times.
func (i *Index) Create(targetURL string) (string, error) {
	if err := validateTarget(targetURL); err != nil {
		return "", err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	links, err := i.backend.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load short links: %w", err)
	}
	if links == nil {
		links = make(map[string]string)
	}

	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		code, genErr := i.generate()
		if genErr != nil {
			return "", fmt.Errorf("failed to generate short code: %w", genErr)
		}
		if _, taken := links[code]; taken {
			continue
		}

		links[code] = targetURL
		if saveErr := i.backend.Save(links); saveErr != nil {
			return "", fmt.Errorf("failed to save short links: %w", saveErr)
		}
		return code, nil
	}

	return "", fmt.Errorf("%d attempts collided: %w", i.maxAttempts, domain.ErrShortCodeExhausted)
}

func (i *Index) Resolve(code string) (string, error) {
	if !validCode(code) {
		return "", fmt.Errorf("short code %q: %w", code, domain.ErrFileNotFound)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	links, err := i.backend.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load short links: %w", err)
	}
	target, ok := links[code]
	if !ok {
		return "", fmt.Errorf("short code %q: %w", code, domain.ErrFileNotFound)
	}
	return target, nil
}

func (i *Index) generate() (string, error) {
	code := make([]byte, 0, i.codeLength)
	buf := make([]byte, i.codeLength)
	for len(code) < i.codeLength {
		if _, err := io.ReadFull(i.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= sampleLimit {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == i.codeLength {
				break
			}
		}
	}
	return string(code), nil
}

func validCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

// validateTarget accepts absolute http(s) URLs and root-relative paths.
func validateTarget(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("empty url: %w", domain.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidURL)
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		if u.Host == "" {
			return fmt.Errorf("url %q has no host: %w", raw, domain.ErrInvalidURL)
		}
		return nil
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//"):
		return nil
	default:
		return fmt.Errorf("url %q is neither http(s) nor a local path: %w", raw, domain.ErrInvalidURL)
	}
}
