// Package models defines the domain types shared across cpbuild packages.
package models

import "time"

// FileMeta is the lightweight description of a file returned by list operations.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Heading is one entry of a rendered page outline.
type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text"`
}

// PageSummary describes a built page as recorded in the build index.
type PageSummary struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Template    string    `json:"template"`
	Output      string    `json:"output"`
	Checksum    string    `json:"checksum"`
	Diagnostics []string  `json:"diagnostics"`
	BuiltAt     time.Time `json:"built_at"`
}
