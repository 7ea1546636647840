package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RemoveSelectors drops every element matching one of selectors and returns
// the re-serialized document. The input is returned unchanged when there is
// nothing to remove or it cannot be parsed.
func RemoveSelectors(rawHTML string, selectors []string) string {
	if len(selectors) == 0 {
		return rawHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	matches := doc.Find(strings.Join(selectors, ", "))
	if matches.Length() == 0 {
		return rawHTML
	}
	matches.Remove()

	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}
