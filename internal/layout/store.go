package layout

import (
	"errors"
	"fmt"
	"os"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/checksum"
	"github.com/starford/cpbuild/internal/storage"
)

// DefaultName is the template used when a document names none.
const DefaultName = "default.html"

// Store looks up template text by name.
type Store interface {
	// Load returns the template text. Unknown names fail with an error
	// matching apperr.ErrTemplateNotFound.
	Load(name string) (string, error)
}

// ProviderStore serves templates from a storage.Provider rooted at the
// template directory.
type ProviderStore struct {
	p storage.Provider
}

// NewProviderStore creates a Store over p.
func NewProviderStore(p storage.Provider) *ProviderStore {
	return &ProviderStore{p: p}
}

// Load reads the named template file.
func (s *ProviderStore) Load(name string) (string, error) {
	data, err := s.p.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", apperr.ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("layout: load %s: %w", name, err)
	}
	return string(data), nil
}

// Root returns the template directory.
func (s *ProviderStore) Root() string {
	return s.p.Root()
}

// Fingerprint returns a digest over every template file, used to detect
// template edits between builds.
func (s *ProviderStore) Fingerprint() (string, error) {
	metas, err := s.p.List("", "")
	if err != nil {
		return "", err
	}
	var all []byte
	for _, m := range metas {
		all = append(all, m.Path...)
		all = append(all, m.Checksum...)
	}
	return checksum.Sum(all), nil
}

// MapStore is an in-memory Store.
type MapStore map[string]string

// Load returns the named template from the map.
func (m MapStore) Load(name string) (string, error) {
	text, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperr.ErrTemplateNotFound, name)
	}
	return text, nil
}
