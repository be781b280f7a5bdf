package memstore

import "sync"

// LinkStore keeps the short link mapping in memory. Load returns a copy.
type LinkStore struct {
	mu    sync.Mutex
	links map[string]string
	saves int
}

func NewLinkStore() *LinkStore {
	return &LinkStore{links: make(map[string]string)}
}

func (s *LinkStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLinks(s.links), nil
}

func (s *LinkStore) Save(links map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = copyLinks(links)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *LinkStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func copyLinks(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
