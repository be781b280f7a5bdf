package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"files-board/internal/domain"
)

// LinkStore persists the short link mapping as one JSON object. Keys on disk
// are "/short/<code>" so existing short_urls.json files load unchanged.
type LinkStore struct {
	fs   afero.Fs
	path string
	perm os.FileMode
}

func NewLinkStore(fs afero.Fs, path string) (*LinkStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("short link state file path is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LinkStore{fs: fs, path: path, perm: 0o644}, nil
}

func (s *LinkStore) Load() (map[string]string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read short link file: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode short link file: %w", err)
	}

	links := make(map[string]string, len(raw))
	for key, target := range raw {
		code := strings.TrimPrefix(key, domain.ShortLinkPathPrefix)
		if code == "" {
			continue
		}
		links[code] = target
	}
	return links, nil
}

// Save rewrites the whole file through a temp file and rename, so a crash
// mid-write leaves the previous mapping intact.
func (s *LinkStore) Save(links map[string]string) error {
	raw := make(map[string]string, len(links))
	for code, target := range links {
		raw[domain.ShortLinkPathPrefix+code] = target
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode short link file: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir short link dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, s.perm); err != nil {
		return fmt.Errorf("write short link file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace short link file: %w", err)
	}
	return nil
}
