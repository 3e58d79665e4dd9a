// Package layout loads page templates and fills their placeholder tokens.
//
// Templates are plain HTML with literal tokens: &title&, &year&, &baseurl&,
// &history& and &text&. Substitution is a single pass, so a value that
// happens to contain a token is never expanded again. Tokens not listed
// above are left as they are.
package layout

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultHistoryBaseURL is where per-page revision history is browsed.
const DefaultHistoryBaseURL = "https://github.com/e-maxx-eng/e-maxx-eng/commits/master/src/"

// Values are the per-document inputs to a template.
type Values struct {
	Title string
	// Path is the document path relative to the source root.
	Path string
	Body string
}

// Composer fills templates from a Store.
type Composer struct {
	store   Store
	baseURL string
	history *url.URL
	now     func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithClock overrides the time source used for &year&.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		c.now = now
	}
}

// NewComposer creates a Composer. historyBase may be empty, in which case
// DefaultHistoryBaseURL is used.
func NewComposer(store Store, baseURL, historyBase string, opts ...Option) (*Composer, error) {
	if historyBase == "" {
		historyBase = DefaultHistoryBaseURL
	}
	hist, err := url.Parse(historyBase)
	if err != nil {
		return nil, fmt.Errorf("layout: parse history base url: %w", err)
	}
	c := &Composer{
		store:   store,
		baseURL: baseURL,
		history: hist,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fingerprint identifies the settings substituted into every page.
func (c *Composer) Fingerprint() string {
	return c.baseURL + "\x00" + c.history.String()
}

// HistoryURL resolves a document path against the history base URL.
func (c *Composer) HistoryURL(path string) string {
	ref := &url.URL{Path: filepath.ToSlash(path)}
	return c.history.ResolveReference(ref).String()
}

// Compose loads the named template and substitutes every known token.
// A missing template yields an error and no output.
func (c *Composer) Compose(name string, v Values) (string, error) {
	tmpl, err := c.store.Load(name)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"&title&", v.Title,
		"&year&", strconv.Itoa(c.now().Year()),
		"&baseurl&", c.baseURL,
		"&history&", c.HistoryURL(v.Path),
		"&text&", v.Body,
	)
	return r.Replace(tmpl), nil
}
