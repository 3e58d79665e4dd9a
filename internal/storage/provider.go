// Package storage defines the file-tree abstraction used for sources,
// templates, static assets and build output.
package storage

import "github.com/starford/cpbuild/internal/models"

// Provider is the interface for file operations under a root directory.
// All paths are relative to the root and use the OS separator.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns metadata for every file under dir whose name ends with
	// ext. An empty ext lists every file. Hidden files are skipped unless the
	// provider was created to include them.
	List(dir, ext string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
}
