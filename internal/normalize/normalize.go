// Package normalize rewrites Markdown lines so the renderer sees well-formed
// fenced code blocks and math-block delimiters on lines of their own.
package normalize

import "strings"

// MathDelimiter toggles a display-math block.
const MathDelimiter = "$$"

// DefaultImageRoot replaces the &imgroot& token when no root is configured.
const DefaultImageRoot = "./img"

const (
	imgRootToken = "&imgroot&"
	cppFence     = "```cpp"
)

var (
	// Four literal backslashes collapse to two.
	doubleEscapedBackslash = strings.NewReplacer(`\\\\`, `\\`)
	// An escaped backslash before an underscore is dropped.
	escapedUnderscore = strings.NewReplacer(`\\_`, `_`)
)

// Normalizer rewrites source lines before rendering.
type Normalizer struct {
	root    string
	imgRoot *strings.Replacer
}

// New creates a Normalizer that rewrites &imgroot& to imageRoot.
// An empty imageRoot means DefaultImageRoot.
func New(imageRoot string) *Normalizer {
	if imageRoot == "" {
		imageRoot = DefaultImageRoot
	}
	return &Normalizer{root: imageRoot, imgRoot: strings.NewReplacer(imgRootToken, imageRoot)}
}

// ImageRoot returns the value substituted for &imgroot&.
func (n *Normalizer) ImageRoot() string {
	return n.root
}

// Lines applies every rewrite to each line and returns the new sequence.
// The input slice is not modified.
func (n *Normalizer) Lines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = n.imgRoot.Replace(line)
		line = doubleEscapedBackslash.Replace(line)
		line = NormalizeFence(line)
		line = escapedUnderscore.Replace(line)
		out = append(out, SplitMath(line)...)
	}
	return out
}

// NormalizeFence collapses a C++ fenced-code opening line, including any
// indentation and trailing annotation tokens, to a bare ```cpp fence.
func NormalizeFence(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), cppFence) {
		return cppFence
	}
	return line
}

// SplitMath puts every $$ occurrence on its own line. Text around a
// delimiter becomes separate lines in original order; whitespace touching a
// delimiter is trimmed and segments left empty are dropped, so an isolated
// $$ line maps to itself. Lines without $$ are returned unchanged.
func SplitMath(line string) []string {
	if !strings.Contains(line, MathDelimiter) {
		return []string{line}
	}
	parts := strings.Split(line, MathDelimiter)
	out := make([]string, 0, 2*len(parts)-1)
	last := len(parts) - 1
	for i, part := range parts {
		switch {
		case i == 0:
			part = strings.TrimRight(part, " \t")
		case i == last:
			part = strings.TrimLeft(part, " \t")
		default:
			part = strings.Trim(part, " \t")
		}
		if part != "" {
			out = append(out, part)
		}
		if i != last {
			out = append(out, MathDelimiter)
		}
	}
	return out
}
