// Package htmltext reduces rendered page HTML to searchable plain text and
// a heading outline.
package htmltext

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/cpbuild/internal/models"
)

// noiseSelectors contribute nothing to search text.
var noiseSelectors = []string{"script", "style", "noscript", "svg", "iframe"}

// Text is the searchable form of a page.
type Text struct {
	Plain    string
	Headings []models.Heading
}

// Extract parses an HTML fragment or document. Whitespace in the plain text
// is collapsed to single spaces.
func Extract(html string) (Text, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Text{}, fmt.Errorf("htmltext: parse: %w", err)
	}
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var headings []models.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		id, _ := s.Attr("id")
		headings = append(headings, models.Heading{
			Level: int(name[1] - '0'),
			ID:    id,
			Text:  collapse(s.Text()),
		})
	})

	return Text{
		Plain:    collapse(doc.Find("body").Text()),
		Headings: headings,
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
