package index

import "github.com/starford/cpbuild/internal/models"

// PageIndex defines the interface for build-index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PageIndex interface {
	UpsertPage(p models.PageSummary, body string) error
	DeletePage(path string) error
	GetChecksum(path string) (string, error)
	GetPage(path string) (*models.PageSummary, error)
	ListPages(limit, offset int, template, sort string) ([]models.PageSummary, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies PageIndex at compile time.
var _ PageIndex = (*DB)(nil)
