package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var diagnosticsKey = parser.NewContextKey()

// repairableHeading is the source-side shape the anchor package can repair
// after rendering.
var repairableHeading = regexp.MustCompile(`^.* #+ \{#.*\}\s*$`)

// diagnosticTransformer inspects the parsed document and records warnings in
// the parser context. It never modifies the tree.
type diagnosticTransformer struct{}

func (t *diagnosticTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	diags := scanBlocks(source)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			content := strings.TrimSpace(string(segmentsText(node.Lines(), source)))
			if strings.Contains(content, "{#") && !repairableHeading.MatchString(content) {
				diags = append(diags, fmt.Sprintf("heading %q has an anchor id that will not be repaired", content))
			}
		case *ast.Link:
			if len(bytes.TrimSpace(node.Destination)) == 0 {
				diags = append(diags, "link with empty destination")
			}
		case *ast.Image:
			if len(bytes.TrimSpace(node.Destination)) == 0 {
				diags = append(diags, "image with empty source")
			}
		}
		return ast.WalkContinue, nil
	})

	pc.Set(diagnosticsKey, diags)
}

func diagnosticsFrom(pc parser.Context) []string {
	diags, _ := pc.Get(diagnosticsKey).([]string)
	return diags
}

func segmentsText(lines *text.Segments, source []byte) []byte {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.Bytes()
}

// scanBlocks reports code fences and math blocks left open at end of input.
// Math delimiters inside code fences are ignored.
func scanBlocks(source []byte) []string {
	var (
		diags     []string
		fence     string
		fenceLine int
		inMath    bool
		mathLine  int
	)
	for i, raw := range strings.Split(string(source), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		switch {
		case inMath:
			if line == "$$" {
				inMath = false
			}
		case fence != "":
			if strings.HasPrefix(line, fence) && strings.Trim(line, fence[:1]) == "" {
				fence = ""
			}
		case line == "$$":
			inMath, mathLine = true, lineNo
		default:
			if marker := fenceMarker(line); marker != "" {
				fence, fenceLine = marker, lineNo
			}
		}
	}
	if fence != "" {
		diags = append(diags, fmt.Sprintf("unterminated code fence opened at line %d", fenceLine))
	}
	if inMath {
		diags = append(diags, fmt.Sprintf("unterminated math block opened at line %d", mathLine))
	}
	return diags
}

// fenceMarker returns the run of backticks or tildes opening a fence, or "".
func fenceMarker(line string) string {
	if len(line) < 3 || (line[0] != '`' && line[0] != '~') {
		return ""
	}
	n := 0
	for n < len(line) && line[n] == line[0] {
		n++
	}
	if n < 3 {
		return ""
	}
	return line[:n]
}
