package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractMeta returns the document title and description, preferring the
// Open Graph tags over <title> and <meta name="description">.
func ExtractMeta(rawHTML string) (title, description string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", ""
	}

	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch prop {
		case "og:title":
			title = content
		case "og:description":
			description = content
		}
	})

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if description == "" {
		description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}
	return title, description
}
