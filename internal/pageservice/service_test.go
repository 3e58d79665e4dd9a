package pageservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/convert"
	"github.com/starford/cpbuild/internal/index"
	"github.com/starford/cpbuild/internal/layout"
	"github.com/starford/cpbuild/internal/normalize"
	"github.com/starford/cpbuild/internal/render"
	"github.com/starford/cpbuild/internal/site"
	"github.com/starford/cpbuild/internal/testutil"
)

type fixture struct {
	src, out string
	db       *index.DB
	svc      *Service
}

func newFixture(t *testing.T, sanitize bool) *fixture {
	t.Helper()
	f := &fixture{db: testutil.TestDB(t)}
	src, srcFS := testutil.TestDir(t)
	tmpl, tmplFS := testutil.TestDir(t)
	out, outFS := testutil.TestDir(t)
	f.src, f.out = src, out
	testutil.WriteFile(t, tmpl, "default.html", "<h1>&title&</h1>\n&text&")

	r := render.NewGoldmark(render.Options{})
	templates := layout.NewProviderStore(tmplFS)
	comp, err := layout.NewComposer(templates, "/", "")
	if err != nil {
		t.Fatal(err)
	}
	b := site.NewBuilder(site.Config{
		Converter: convert.New(normalize.New(""), r, comp),
		Sources:   srcFS,
		Output:    outFS,
		Templates: templates,
		Index:     f.db,
		Workers:   2,
		Logger:    slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	preview, err := NewPreviewConverter(r, "", "")
	if err != nil {
		t.Fatal(err)
	}
	policy := SanitizePolicy()
	if !sanitize {
		policy = nil
	}
	f.svc = NewService(b, f.db, outFS, preview, policy)
	return f
}

func TestPreview_BodyOnly(t *testing.T) {
	f := newFixture(t, false)
	got, err := f.svc.Preview(context.Background(), "<!--?title Draft-->\n## Heap ## {#heap}\n\nSee [home](&imgroot&/x.png)")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got.Title != "Draft" {
		t.Errorf("title = %q", got.Title)
	}
	if !strings.HasPrefix(got.HTML, `<h2 id="heap">Heap</h2>`) {
		t.Errorf("html = %q", got.HTML)
	}
	if !strings.Contains(got.HTML, `href="./img/x.png"`) {
		t.Errorf("imgroot not rewritten: %q", got.HTML)
	}
	if got.Diagnostics == nil {
		t.Error("diagnostics should be an empty slice, not nil")
	}
}

func TestPreview_Sanitized(t *testing.T) {
	f := newFixture(t, true)
	got, err := f.svc.Preview(context.Background(), "```cpp\nint x;\n```\n\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if strings.Contains(got.HTML, "<script>") {
		t.Errorf("script survived sanitizing: %q", got.HTML)
	}
	if !strings.Contains(got.HTML, `class="language-cpp"`) {
		t.Errorf("code class stripped: %q", got.HTML)
	}
}

func TestPreview_TemplateDirectiveFails(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Preview(context.Background(), "<!--?template article.html-->\nx")
	if !errors.Is(err, apperr.ErrTemplateNotFound) {
		t.Errorf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestGetPage_WithHeadings(t *testing.T) {
	f := newFixture(t, false)
	testutil.WriteFile(t, f.src, "algo/sort.md", "<!--?title Sorting-->\n## Merge sort ## {#merge}\n\ntext\n")
	if _, err := f.svc.RebuildAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.GetPage(context.Background(), "algo/sort.md")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got.Title != "Sorting" || got.Output != "algo/sort.html" {
		t.Errorf("page = %+v", got.PageSummary)
	}
	if len(got.Headings) != 2 || got.Headings[1].ID != "merge" || got.Headings[1].Text != "Merge sort" {
		t.Errorf("headings = %+v", got.Headings)
	}
}

func TestGetPage_NotFound(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.svc.GetPage(context.Background(), "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndSearch(t *testing.T) {
	f := newFixture(t, false)
	testutil.WriteFile(t, f.src, "a.md", "<!--?title Dijkstra-->\nshortest paths with a heap")
	testutil.WriteFile(t, f.src, "b.md", "<!--?title Kruskal-->\nminimum spanning tree")
	if _, err := f.svc.RebuildAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	pages, total, err := f.svc.ListPages(context.Background(), 10, 0, "", "title")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if total != 2 || pages[0].Title != "Dijkstra" {
		t.Errorf("pages = %+v total=%d", pages, total)
	}

	hits, err := f.svc.Search(context.Background(), "spanning", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "b.md" {
		t.Errorf("hits = %+v", hits)
	}

	empty, err := f.svc.Search(context.Background(), "  ", 10)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("blank search = %v, %v", empty, err)
	}
}

func TestRebuildAndSource(t *testing.T) {
	f := newFixture(t, false)
	testutil.WriteFile(t, f.src, "r.md", "<!--?title First-->\n")
	if _, err := f.svc.Rebuild(context.Background(), "r.md"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	testutil.WriteFile(t, f.src, "r.md", "<!--?title Second-->\n")
	got, err := f.svc.Rebuild(context.Background(), "r.md")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got.Title != "Second" {
		t.Errorf("title = %q", got.Title)
	}

	src, err := f.svc.Source(context.Background(), "r.md")
	if err != nil || src != "<!--?title Second-->\n" {
		t.Errorf("Source = %q, %v", src, err)
	}
	if _, err := f.svc.Source(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing source: err = %v", err)
	}
	if _, err := f.svc.Rebuild(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing rebuild: err = %v", err)
	}
}
