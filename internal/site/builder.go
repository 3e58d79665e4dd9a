// Package site drives whole-corpus builds: it converts every source document,
// writes the HTML output tree, keeps the build index current and watches the
// sources for changes.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/checksum"
	"github.com/starford/cpbuild/internal/convert"
	"github.com/starford/cpbuild/internal/htmltext"
	"github.com/starford/cpbuild/internal/index"
	"github.com/starford/cpbuild/internal/models"
	"github.com/starford/cpbuild/internal/storage"
)

// SourceExt is the extension of source documents.
const SourceExt = ".md"

// TemplateSet is the template directory as seen by the builder.
type TemplateSet interface {
	Root() string
	// Fingerprint changes whenever any template changes.
	Fingerprint() (string, error)
}

// Config wires a Builder.
type Config struct {
	Converter *convert.Converter
	Sources   storage.Provider
	Output    storage.Provider
	// Static is copied over Output after every full build. May be nil.
	Static    storage.Provider
	Templates TemplateSet
	Index     index.PageIndex
	// BaseURL takes part in the build fingerprint since it is baked into pages.
	BaseURL      string
	Workers      int
	Force        bool
	ShowProgress bool
	Logger       *slog.Logger
}

// Report summarizes one full build.
type Report struct {
	Built    int           `json:"built"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Removed  int           `json:"removed"`
	Static   int           `json:"static"`
	Duration time.Duration `json:"duration"`

	BuiltPaths   []string `json:"-"`
	RemovedPaths []string `json:"-"`
}

// Builder converts the source tree into the output tree.
type Builder struct {
	cfg Config
	// settings digests converter configuration for the build fingerprint.
	settings string
	now      func() time.Time
}

// NewBuilder creates a Builder. Workers below one means one.
func NewBuilder(cfg Config) *Builder {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Builder{cfg: cfg, settings: cfg.Converter.Fingerprint(), now: time.Now}
}

// OutputPath maps a source path to its HTML output path.
func OutputPath(rel string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
}

// BuildAll builds every source document. Documents whose fingerprint is
// unchanged and whose output exists are skipped unless the builder was
// configured with Force. A failing document is logged and counted; it never
// stops the batch. The returned error is non-nil only when the build as a
// whole could not run or ctx was cancelled.
func (b *Builder) BuildAll(ctx context.Context) (Report, error) {
	return b.buildAll(ctx, b.cfg.Force)
}

func (b *Builder) buildAll(ctx context.Context, force bool) (Report, error) {
	start := time.Now()
	logger := b.cfg.Logger

	tfp, err := b.cfg.Templates.Fingerprint()
	if err != nil {
		return Report{}, fmt.Errorf("site: fingerprint templates: %w", err)
	}
	metas, err := b.cfg.Sources.List("", SourceExt)
	if err != nil {
		return Report{}, fmt.Errorf("site: list sources: %w", err)
	}
	known, err := b.cfg.Index.AllChecksums()
	if err != nil {
		return Report{}, fmt.Errorf("site: load index: %w", err)
	}

	logger.Info("build: started",
		slog.Int("documents", len(metas)),
		slog.Int("workers", b.cfg.Workers),
		slog.Bool("force", force))

	var (
		built, failed, skipped atomic.Int64
		mu                     sync.Mutex
		builtPaths             []string
	)
	prog := newProgress(logger, len(metas), b.cfg.ShowProgress)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		fp := b.fingerprint(m.Checksum, tfp)

		if !force && known[m.Path] == fp && b.cfg.Output.Exists(OutputPath(m.Path)) {
			skipped.Add(1)
			prog.step()
			continue
		}

		g.Go(func() error {
			defer prog.step()
			if _, err := b.buildDoc(gCtx, m.Path, fp); err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				logger.Error("build: document failed",
					slog.String("path", m.Path),
					slog.String("error", err.Error()))
				return nil
			}
			built.Add(1)
			mu.Lock()
			builtPaths = append(builtPaths, m.Path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("site: build: %w", err)
	}

	rep := Report{
		Built:      int(built.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
		BuiltPaths: builtPaths,
	}

	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := b.remove(p); err != nil {
			logger.Warn("build: remove stale failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		rep.Removed++
		rep.RemovedPaths = append(rep.RemovedPaths, p)
	}

	n, err := copyStatic(b.cfg.Static, b.cfg.Output)
	if err != nil {
		return rep, fmt.Errorf("site: copy static: %w", err)
	}
	rep.Static = n
	rep.Duration = time.Since(start)

	logger.Info("build: finished",
		slog.Int("built", rep.Built),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Int("removed", rep.Removed),
		slog.Int("static", rep.Static),
		slog.Duration("duration", rep.Duration))
	return rep, nil
}

// BuildOne rebuilds a single source document regardless of its fingerprint.
// A path that is not a source document yields apperr.ErrNotFound.
func (b *Builder) BuildOne(ctx context.Context, rel string) (*convert.Page, error) {
	fp, err := b.sourceFingerprint(rel)
	if err != nil {
		return nil, err
	}
	return b.buildDoc(ctx, rel, fp)
}

// Refresh rebuilds a single source document only when its fingerprint
// differs from the indexed one or its output is missing. It reports whether
// the page was built.
func (b *Builder) Refresh(ctx context.Context, rel string) (bool, error) {
	fp, err := b.sourceFingerprint(rel)
	if err != nil {
		return false, err
	}
	known, err := b.cfg.Index.GetChecksum(rel)
	if err != nil {
		return false, fmt.Errorf("site: load index: %w", err)
	}
	if known == fp && b.cfg.Output.Exists(OutputPath(rel)) {
		return false, nil
	}
	if _, err := b.buildDoc(ctx, rel, fp); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Builder) sourceFingerprint(rel string) (string, error) {
	data, err := b.Source(rel)
	if err != nil {
		return "", err
	}
	tfp, err := b.cfg.Templates.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("site: fingerprint templates: %w", err)
	}
	return b.fingerprint(checksum.Sum(data), tfp), nil
}

// Remove deletes the output and index entry of a source document.
func (b *Builder) Remove(_ context.Context, rel string) error {
	return b.remove(rel)
}

// Source returns the raw text of a source document.
func (b *Builder) Source(rel string) ([]byte, error) {
	if !strings.HasSuffix(rel, SourceExt) || !b.cfg.Sources.Exists(rel) {
		return nil, fmt.Errorf("site: source %s: %w", rel, apperr.ErrNotFound)
	}
	data, err := b.cfg.Sources.Read(rel)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("site: source %s: %w", rel, apperr.ErrNotFound)
	}
	return data, err
}

func (b *Builder) remove(rel string) error {
	if err := b.cfg.Output.Delete(OutputPath(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return b.cfg.Index.DeletePage(rel)
}

func (b *Builder) buildDoc(ctx context.Context, rel, fp string) (*convert.Page, error) {
	data, err := b.cfg.Sources.Read(rel)
	if err != nil {
		return nil, err
	}
	page, err := b.cfg.Converter.Convert(ctx, convert.Document{Path: rel, Source: string(data)})
	if err != nil {
		return nil, err
	}
	for _, d := range page.Diagnostics {
		b.cfg.Logger.Warn("build: renderer diagnostic",
			slog.String("path", rel),
			slog.String("message", d))
	}

	out := OutputPath(rel)
	if err := b.cfg.Output.Write(out, []byte(page.HTML)); err != nil {
		return nil, err
	}

	text, err := htmltext.Extract(page.Body)
	if err != nil {
		b.cfg.Logger.Warn("build: extract text failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	err = b.cfg.Index.UpsertPage(models.PageSummary{
		Path:        rel,
		Title:       page.Title,
		Template:    page.Template,
		Output:      filepath.ToSlash(out),
		Checksum:    fp,
		Diagnostics: page.Diagnostics,
		BuiltAt:     b.now(),
	}, text.Plain)
	if err != nil {
		return nil, err
	}
	b.cfg.Logger.Debug("build: document built", slog.String("path", rel), slog.String("output", out))
	return page, nil
}

// fingerprint covers every input baked into a built page.
func (b *Builder) fingerprint(sourceSum, templatesSum string) string {
	return checksum.Combine(sourceSum, templatesSum, b.cfg.BaseURL, b.settings)
}
