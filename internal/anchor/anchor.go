// Package anchor turns heading anchor suffixes left in rendered HTML into id
// attributes.
//
// Source headings are written as "## Text ### {#some-id}". The renderer keeps
// the suffix as visible text, producing <h2>Text ### {#some-id}</h2>. Repair
// works line by line: a heading whose opening and closing tags are on
// different lines is left alone.
package anchor

import (
	"fmt"
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^<h(\d)>(.*) #+ \{#(.*)\}\s*</h\d>$`)

// RepairLine rewrites a single line. ok reports whether the line matched.
func RepairLine(line string) (string, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return line, false
	}
	level, text, id := m[1], m[2], m[3]
	return fmt.Sprintf(`<h%s id="%s">%s</h%s>`, level, id, text, level), true
}

// Repair applies RepairLine to every line of html.
func Repair(html string) string {
	lines := strings.Split(html, "\n")
	for i, line := range lines {
		lines[i], _ = RepairLine(line)
	}
	return strings.Join(lines, "\n")
}
