package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// chromeSelectors are page regions that never hold profile content.
var chromeSelectors = "nav, header, footer, aside, [role='navigation'], [role='banner'], [role='contentinfo'], [role='complementary']"

// negativeClassIDPatterns are substrings in class/id attributes of
// site chrome: navigation, messaging overlays, ads, upsells.
var negativeClassIDPatterns = []string{
	"global-nav", "nav", "menu", "footer", "sidebar", "msg-overlay",
	"ad-banner", "ads-", "cookie", "promo", "upsell", "premium", "recommend",
}

// maxChromeLinkDensity is the share of link text above which an element
// with a chrome-like class or id is dropped.
const maxChromeLinkDensity = 0.5

// pruneBoilerplate removes navigation and other site chrome from a document
// whose main content readability could not isolate. The remaining document
// is returned; on parse failure rawHTML is returned unchanged.
func pruneBoilerplate(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	doc.Find(chromeSelectors).Remove()
	doc.Find("body *").Each(func(_ int, el *goquery.Selection) {
		if isChrome(el) {
			el.Remove()
		}
	})

	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}

// isChrome reports whether el looks like site chrome: a chrome-like class
// or id and mostly link text.
func isChrome(el *goquery.Selection) bool {
	if !hasChromeClassID(el) {
		return false
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		return true
	}
	return linkDensity(el, len(text)) > maxChromeLinkDensity
}

func hasChromeClassID(el *goquery.Selection) bool {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			return true
		}
	}
	return false
}

// linkDensity is the ratio of anchor text to textLen.
func linkDensity(el *goquery.Selection, textLen int) float64 {
	if textLen == 0 {
		return 0
	}
	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	return float64(linkTextLen) / float64(textLen)
}
