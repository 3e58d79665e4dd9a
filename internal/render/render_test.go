package render

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func renderString(t *testing.T, r Renderer, md string) Output {
	t.Helper()
	out, err := r.Render(context.Background(), md)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestGoldmark_HeadingAnchorSuffixSurvives(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "## Binary Search ### {#binary-search}\n")
	if !strings.Contains(out.HTML, "<h2>Binary Search ### {#binary-search}</h2>") {
		t.Errorf("html = %q", out.HTML)
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", out.Diagnostics)
	}
}

func TestGoldmark_FencedCode(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "```cpp\nint x = 1;\n```\n")
	if !strings.Contains(out.HTML, `<pre><code class="language-cpp">int x = 1;`) {
		t.Errorf("html = %q", out.HTML)
	}
}

func TestGoldmark_Linkify(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "see https://cp-algorithms.com for more\n")
	if !strings.Contains(out.HTML, `<a href="https://cp-algorithms.com">https://cp-algorithms.com</a>`) {
		t.Errorf("html = %q", out.HTML)
	}
}

func TestGoldmark_Math(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "$$\nx^2 + y^2\n$$\n\ninline $a_i$ here\n")
	if !strings.Contains(out.HTML, "math display") {
		t.Errorf("display math not rendered: %q", out.HTML)
	}
	if !strings.Contains(out.HTML, "math inline") {
		t.Errorf("inline math not rendered: %q", out.HTML)
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", out.Diagnostics)
	}
}

func TestGoldmark_RawHTMLPassesThrough(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "<center>![x](a.png)</center>\n")
	if !strings.Contains(out.HTML, "<center>") {
		t.Errorf("html = %q", out.HTML)
	}
}

func TestGoldmark_Highlight(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{Highlight: true}), "```cpp\nint x = 1;\n```\n")
	if !strings.Contains(out.HTML, "chroma") {
		t.Errorf("expected chroma classes, html = %q", out.HTML)
	}
}

func TestGoldmark_Diagnostics(t *testing.T) {
	cases := []struct {
		name string
		md   string
		want string
	}{
		{"open fence", "text\n```cpp\nint x;\n", "unterminated code fence opened at line 2"},
		{"open math", "$$\nx^2\n", "unterminated math block opened at line 1"},
		{"empty link", "a [link]() here\n", "link with empty destination"},
		{"bad anchor", "## Title {#title}\n", "will not be repaired"},
	}
	r := NewGoldmark(Options{})
	for _, c := range cases {
		out := renderString(t, r, c.md)
		found := false
		for _, d := range out.Diagnostics {
			if strings.Contains(d, c.want) {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: diagnostics = %v, want one containing %q", c.name, out.Diagnostics, c.want)
		}
	}
}

func TestGoldmark_MathInsideFenceIgnored(t *testing.T) {
	out := renderString(t, NewGoldmark(Options{}), "```\n$$\n```\n")
	if len(out.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", out.Diagnostics)
	}
}

func TestGoldmark_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGoldmark(Options{}).Render(ctx, "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGoldmark_ReusableAcrossCalls(t *testing.T) {
	r := NewGoldmark(Options{})
	first := renderString(t, r, "```\nopen\n")
	second := renderString(t, r, "closed\n")
	if len(first.Diagnostics) == 0 {
		t.Error("first call should report a diagnostic")
	}
	if len(second.Diagnostics) != 0 {
		t.Errorf("diagnostics leaked between calls: %v", second.Diagnostics)
	}
}
