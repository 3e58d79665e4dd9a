// Package directive extracts in-document metadata lines from Markdown content.
//
// A directive is an HTML comment of the form <!--?title TEXT--> or
// <!--?template NAME--> on a line of its own. Directive lines are removed from
// the body; every other line passes through untouched.
package directive

import (
	"regexp"
	"strings"
)

// Defaults used when a document carries no directive of a kind.
const (
	DefaultTitle    = "Title"
	DefaultTemplate = "default.html"
)

var (
	titleRe    = regexp.MustCompile(`^<!--\?title\s+(.*)\s*-->`)
	templateRe = regexp.MustCompile(`^<!--\?template\s+(.*)\s*-->`)
)

// Kind tags the outcome of classifying a single line.
type Kind int

const (
	NoMatch Kind = iota
	TitleDirective
	TemplateDirective
)

func (k Kind) String() string {
	switch k {
	case TitleDirective:
		return "title"
	case TemplateDirective:
		return "template"
	default:
		return "none"
	}
}

// Match is the tagged result of Classify. Value is empty for NoMatch.
type Match struct {
	Kind  Kind
	Value string
}

// Result holds the output of extracting directives from a document.
type Result struct {
	Title    string
	Template string
	Body     []string
}

// Classify tests a single line against the known directive forms.
// The title form is tested first; a line matches at most one form.
func Classify(line string) Match {
	trimmed := strings.TrimSpace(line)
	if m := titleRe.FindStringSubmatch(trimmed); m != nil {
		return Match{Kind: TitleDirective, Value: strings.TrimSpace(m[1])}
	}
	if m := templateRe.FindStringSubmatch(trimmed); m != nil {
		return Match{Kind: TemplateDirective, Value: strings.TrimSpace(m[1])}
	}
	return Match{Kind: NoMatch}
}

// Extract folds over lines and returns the resolved title, template and the
// remaining body. Directives may appear anywhere; when a kind occurs more than
// once the last occurrence in scan order wins.
func Extract(lines []string) Result {
	res := Result{
		Title:    DefaultTitle,
		Template: DefaultTemplate,
		Body:     make([]string, 0, len(lines)),
	}
	for _, line := range lines {
		res = res.apply(line, Classify(line))
	}
	return res
}

// ExtractString splits content on newlines and calls Extract.
func ExtractString(content string) Result {
	return Extract(strings.Split(content, "\n"))
}

func (r Result) apply(line string, m Match) Result {
	switch m.Kind {
	case TitleDirective:
		r.Title = m.Value
	case TemplateDirective:
		r.Template = m.Value
	default:
		r.Body = append(r.Body, line)
	}
	return r
}
