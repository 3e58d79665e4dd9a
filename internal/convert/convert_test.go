package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/cpbuild/internal/apperr"
	"github.com/starford/cpbuild/internal/layout"
	"github.com/starford/cpbuild/internal/normalize"
	"github.com/starford/cpbuild/internal/render"
)

type recordingRenderer struct {
	mu    sync.Mutex
	input string
	out   render.Output
	err   error
}

func (r *recordingRenderer) Render(_ context.Context, md string) (render.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = md
	if r.err != nil {
		return render.Output{}, r.err
	}
	return r.out, nil
}

func clock() time.Time { return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) }

func newConverter(t *testing.T, r render.Renderer, templates layout.MapStore) *Converter {
	t.Helper()
	comp, err := layout.NewComposer(templates, "/site/", "", layout.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	return New(normalize.New(""), r, comp)
}

func goldmarkConverter(t *testing.T, templates layout.MapStore) *Converter {
	return newConverter(t, render.NewGoldmark(render.Options{}), templates)
}

func TestConvert_TitleSubstitutedAndRemoved(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&title&|&text&"})
	src := "<!--?title My Page-->\nHello world.\n"

	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: src})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if page.Title != "My Page" {
		t.Errorf("Title = %q", page.Title)
	}
	if !strings.HasPrefix(page.HTML, "My Page|") {
		t.Errorf("HTML = %q, want title prefix", page.HTML)
	}
	if strings.Contains(page.Body, "<!--?title") || strings.Contains(page.HTML, "<!--?title") {
		t.Errorf("directive leaked into output: %q", page.HTML)
	}
	if !strings.Contains(page.Body, "<p>Hello world.</p>") {
		t.Errorf("Body = %q", page.Body)
	}
}

func TestConvert_DefaultTemplate(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{
		"default.html": "D:&text&",
		"other.html":   "O:&text&",
	})
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: "text"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if page.Template != layout.DefaultName {
		t.Errorf("Template = %q", page.Template)
	}
	if page.Title != "Title" {
		t.Errorf("Title = %q, want default", page.Title)
	}
	if !strings.HasPrefix(page.HTML, "D:") {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestConvert_TemplateDirective(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{
		"default.html": "D:&text&",
		"other.html":   "O:&text&",
	})
	page, err := c.Convert(context.Background(), Document{
		Path:   "a.md",
		Source: "<!--?template other.html-->\ntext",
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.HasPrefix(page.HTML, "O:") {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestConvert_LastTitleWins(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&title&"})
	src := "<!--?title First-->\nbody\n<!--?title Second-->\n"
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: src})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if page.HTML != "Second" {
		t.Errorf("HTML = %q, want Second", page.HTML)
	}
}

func TestConvert_TemplateNotFound(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&text&"})
	page, err := c.Convert(context.Background(), Document{
		Path:   "a.md",
		Source: "<!--?template missing.html-->\nbody",
	})
	if !errors.Is(err, apperr.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
}

func TestConvert_AnchorRepaired(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&text&"})
	src := "## Binary Search ### {#binary-search}\n\nbody\n"
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: src})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(page.HTML, `<h2 id="binary-search">Binary Search</h2>`) {
		t.Errorf("HTML = %q", page.HTML)
	}
	if len(page.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v", page.Diagnostics)
	}
}

func TestConvert_CppFenceMetadataDropped(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&text&"})
	src := "```cpp title=\"main\"\nint main() {}\n```\n"
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: src})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(page.HTML, `class="language-cpp"`) {
		t.Errorf("HTML = %q", page.HTML)
	}
	if strings.Contains(page.HTML, "title=") {
		t.Errorf("fence metadata leaked: %q", page.HTML)
	}
}

func TestConvert_NormalizedMarkdownReachesRenderer(t *testing.T) {
	r := &recordingRenderer{out: render.Output{HTML: "<p>x</p>"}}
	c := newConverter(t, r, layout.MapStore{"default.html": "&text&"})
	src := "<!--?title T-->\n![g](&imgroot&/g.png)\nprefix $$ mid $$ suffix"

	if _, err := c.Convert(context.Background(), Document{Path: "a.md", Source: src}); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "![g](./img/g.png)\nprefix\n$$\nmid\n$$\nsuffix"
	if r.input != want {
		t.Errorf("renderer input = %q, want %q", r.input, want)
	}
}

func TestConvert_DiagnosticsSurfaced(t *testing.T) {
	r := &recordingRenderer{out: render.Output{HTML: "<p>x</p>", Diagnostics: []string{"odd link"}}}
	c := newConverter(t, r, layout.MapStore{"default.html": "&text&"})
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: "x"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(page.Diagnostics) != 1 || page.Diagnostics[0] != "odd link" {
		t.Errorf("Diagnostics = %v", page.Diagnostics)
	}
	if page.HTML != "<p>x</p>" {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestConvert_UnclosedFenceIsDiagnosticNotError(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&text&"})
	page, err := c.Convert(context.Background(), Document{Path: "a.md", Source: "```cpp\nint x;\n"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(page.Diagnostics) == 0 {
		t.Error("expected a diagnostic for the unclosed fence")
	}
	if !strings.Contains(page.HTML, "int x;") {
		t.Errorf("HTML = %q", page.HTML)
	}
}

func TestConvert_RendererError(t *testing.T) {
	boom := errors.New("boom")
	c := newConverter(t, &recordingRenderer{err: boom}, layout.MapStore{"default.html": "&text&"})
	if _, err := c.Convert(context.Background(), Document{Path: "a.md", Source: "x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestConvert_HistoryAndYear(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&year& &baseurl& &history&"})
	page, err := c.Convert(context.Background(), Document{Path: "graph/dfs.md", Source: ""})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "2023 /site/ https://github.com/e-maxx-eng/e-maxx-eng/commits/master/src/graph/dfs.md"
	if page.HTML != want {
		t.Errorf("HTML = %q, want %q", page.HTML, want)
	}
}

func TestConvert_Parallel(t *testing.T) {
	c := goldmarkConverter(t, layout.MapStore{"default.html": "&title&:&text&"})
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := fmt.Sprintf("Page %d", i)
			src := fmt.Sprintf("<!--?title %s-->\nbody %d", title, i)
			page, err := c.Convert(context.Background(), Document{Path: "p.md", Source: src})
			if err != nil {
				errs <- err
				return
			}
			if !strings.HasPrefix(page.HTML, title+":") || !strings.Contains(page.HTML, fmt.Sprintf("body %d", i)) {
				errs <- fmt.Errorf("page %d mixed up: %q", i, page.HTML)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConverter_Fingerprint(t *testing.T) {
	store := layout.MapStore{layout.DefaultName: "&text&"}
	build := func(imgRoot, baseURL, history string, opts render.Options) string {
		t.Helper()
		comp, err := layout.NewComposer(store, baseURL, history)
		if err != nil {
			t.Fatal(err)
		}
		return New(normalize.New(imgRoot), render.NewGoldmark(opts), comp).Fingerprint()
	}

	base := build("", "/", "", render.Options{})
	if base != build("", "/", "", render.Options{}) {
		t.Fatal("fingerprint is not stable")
	}
	if base != build(normalize.DefaultImageRoot, "/", layout.DefaultHistoryBaseURL, render.Options{}) {
		t.Error("explicit defaults should match implicit ones")
	}
	variants := map[string]string{
		"image root":      build("/cdn", "/", "", render.Options{}),
		"base url":        build("", "/site/", "", render.Options{}),
		"history base":    build("", "/", "https://example.org/h/", render.Options{}),
		"highlight":       build("", "/", "", render.Options{Highlight: true}),
		"highlight style": build("", "/", "", render.Options{Highlight: true, HighlightStyle: "monokai"}),
	}
	for name, fp := range variants {
		if fp == base {
			t.Errorf("%s change did not alter the fingerprint", name)
		}
	}
	if variants["highlight"] == variants["highlight style"] {
		t.Error("highlight style change did not alter the fingerprint")
	}

	if New(normalize.New(""), &recordingRenderer{}, mustComposer(t, store)).Fingerprint() == "" {
		t.Error("renderer without fingerprint should still yield a digest")
	}
}

func mustComposer(t *testing.T, store layout.Store) *layout.Composer {
	t.Helper()
	c, err := layout.NewComposer(store, "/", "")
	if err != nil {
		t.Fatal(err)
	}
	return c
}
