package cleaner

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed before any text is taken from a full document.
var noiseSelectors = []string{"script", "style", "noscript", "template", "svg", "iframe"}

// Cleaner turns full HTML documents into analysis-ready text.
// The converter is created once and reused (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Document is a cleaned pre-fetched page.
type Document struct {
	Title       string
	Description string
	Markdown    string
}

// CleanFile converts a saved HTML page into Markdown.
//
// Flow:
//  1. Collect title and description from the untouched document.
//  2. Narrow to selector, if given (no match keeps the whole document).
//  3. Drop scripts, styles and other non-text nodes.
//  4. Readability extracts the main content (falls back to the whole body).
//  5. Convert to Markdown.
func (c *Cleaner) CleanFile(rawHTML, sourceURL, selector string) (*Document, error) {
	title, desc := ExtractMeta(rawHTML)

	if selector != "" {
		narrowed, err := ApplyCSSSelector(rawHTML, selector)
		if err != nil {
			return nil, err
		}
		rawHTML = narrowed
	}
	rawHTML = RemoveSelectors(rawHTML, noiseSelectors)

	article, ok := ExtractContent(rawHTML, sourceURL)
	if ok && title == "" {
		title = article.Title
	}
	if ok && desc == "" {
		desc = article.Excerpt
	}

	md, err := ToMarkdown(c.mdConverter, article.Content, sourceURL)
	if err != nil {
		return nil, err
	}

	slog.Debug("cleaned html input",
		"url", sourceURL,
		"readability", ok,
		"original_tokens", EstimateTokens(rawHTML),
		"cleaned_tokens", EstimateTokens(md),
	)
	return &Document{Title: title, Description: desc, Markdown: strings.TrimSpace(md)}, nil
}

// DocumentText returns the best plain-text rendition of a full document:
// the readability article when it is long enough, otherwise every visible
// text node with non-text elements removed.
func DocumentText(rawHTML, sourceURL string) string {
	cleaned := RemoveSelectors(rawHTML, noiseSelectors)
	if article, ok := ExtractContent(cleaned, sourceURL); ok {
		return strings.TrimSpace(article.TextContent)
	}
	return stripTags(cleaned)
}

// stripTags extracts visible text from an HTML fragment by parsing it with
// goquery. Returns trimmed plain text.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.TrimSpace(body.Text())
}
