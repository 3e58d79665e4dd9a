package mcpserver

// DirectiveFormatContract describes the article conventions the site build
// understands. LLM consumers should follow it when drafting articles.
const DirectiveFormatContract = `# Article Directive Contract

Articles are Markdown files under the input directory. Each ` + "`" + `path/name.md` + "`" + `
is built to ` + "`" + `path/name.html` + "`" + ` in the output directory.

## Directives

Directives are HTML comments on a line of their own. They are removed from
the body before rendering and may appear anywhere in the file.

` + "```" + `markdown
<!--?title Depth First Search-->
<!--?template default.html-->
` + "```" + `

- ` + "`" + `title` + "`" + ` defaults to ` + "`" + `Title` + "`" + `.
- ` + "`" + `template` + "`" + ` names a file in the template directory and defaults to ` + "`" + `default.html` + "`" + `.
- When a directive occurs more than once the last one wins.

## Body conventions

1. **Images** may use the ` + "`" + `&imgroot&` + "`" + ` token, which is replaced by the configured
   image root (default ` + "`" + `./img` + "`" + `): ` + "`" + `![graph](&imgroot&/dfs.png)` + "`" + `.
2. **Display math** ` + "`" + `$$...$$` + "`" + ` may share a line with text. It is split onto its
   own lines before rendering. Inline math uses single ` + "`" + `$` + "`" + `.
3. **C++ code** fences are written as ` + "```" + `cpp` + "```" + `. Variants such as ` + "`" + `{.cpp}` + "`" + ` or
   ` + "`" + `c++` + "`" + ` are normalized.
4. **Heading anchors** use a trailing ` + "`" + `{#id}` + "`" + ` on a single-line heading:
   ` + "`" + `## Algorithm {#algo}` + "`" + `. The id must be on the same line as the heading text.

## Template tokens

Templates are plain HTML with literal tokens, substituted in a single pass:

| Token | Value |
|---|---|
| ` + "`" + `&title&` + "`" + ` | the title directive |
| ` + "`" + `&text&` + "`" + ` | the rendered article body |
| ` + "`" + `&baseurl&` + "`" + ` | the configured site base URL |
| ` + "`" + `&year&` + "`" + ` | the current year |
| ` + "`" + `&history&` + "`" + ` | the revision history URL of the source file |

Unknown tokens are left untouched.
`
