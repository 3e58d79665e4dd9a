package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Output  string `json:"output"`
	Snippet string `json:"snippet"`
}

// sortColumns maps the accepted sort keys to ORDER BY clauses.
var sortColumns = map[string]string{
	"":          "path ASC",
	"path":      "path ASC",
	"title":     "title COLLATE NOCASE ASC, path ASC",
	"built_at":  "built_at DESC, path ASC",
	"-built_at": "built_at ASC, path ASC",
}

// UpsertPage inserts or replaces a page and its FTS entry within a transaction.
// body is the plain text used for search.
func (db *DB) UpsertPage(p models.PageSummary, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	diags := p.Diagnostics
	if diags == nil {
		diags = []string{}
	}
	diagsJSON, _ := json.Marshal(diags)

	_, err = tx.Exec(`
		INSERT INTO pages (path, title, template, checksum, output, diagnostics, body, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			template    = excluded.template,
			checksum    = excluded.checksum,
			output      = excluded.output,
			diagnostics = excluded.diagnostics,
			body        = excluded.body,
			built_at    = excluded.built_at
	`, p.Path, p.Title, p.Template, p.Checksum, p.Output, string(diagsJSON), body, p.BuiltAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.Path, p.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePage removes a page and its FTS entry.
func (db *DB) DeletePage(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM pages WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete page: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored build fingerprint for a page, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM pages WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetPage returns one page. Unknown paths yield apperr.ErrNotFound.
func (db *DB) GetPage(path string) (*models.PageSummary, error) {
	row := db.conn.QueryRow(`
		SELECT path, title, template, checksum, output, diagnostics, built_at
		FROM pages WHERE path = ?`, path)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: page %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get page: %w", err)
	}
	return p, nil
}

// ListPages returns one page of results and the total number of matching rows.
// template filters by template name when non-empty; sort is one of path,
// title, built_at or -built_at.
func (db *DB) ListPages(limit, offset int, template, sort string) ([]models.PageSummary, int, error) {
	order, ok := sortColumns[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", sort)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := "", []any{}
	if template != "" {
		where, args = "WHERE template = ?", append(args, template)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count pages: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, template, checksum, output, diagnostics, built_at
		FROM pages `+where+`
		ORDER BY `+order+`
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list pages: %w", err)
	}
	defer rows.Close()

	out := []models.PageSummary{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the stored fingerprint of every indexed page.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*models.PageSummary, error) {
	var (
		p     models.PageSummary
		diags string
	)
	if err := s.Scan(&p.Path, &p.Title, &p.Template, &p.Checksum, &p.Output, &diags, &p.BuiltAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(diags), &p.Diagnostics); err != nil {
		return nil, fmt.Errorf("index: decode diagnostics for %s: %w", p.Path, err)
	}
	return &p, nil
}
