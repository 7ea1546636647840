package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// skipTags never contribute to a structure fingerprint; they churn between
// loads of the same page.
var skipTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "link": {}, "meta": {},
}

// Structure fingerprints the tag sequence of an HTML document, ignoring text
// and attributes. Two rounds that land on the same interstitial or challenge
// page produce equal or near-equal structure fingerprints.
func Structure(htmlStr string) uint64 {
	tags := extractTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}

	shingles := makeShingles(tags, 3)
	if len(shingles) == 0 {
		return fingerprintTokens(tags)
	}
	return fingerprintTokens(shingles)
}

// extractTags walks HTML with the tokenizer and collects open tag names in order.
func extractTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			name := string(tn)
			if _, skip := skipTags[name]; !skip {
				tags = append(tags, name)
			}
		}
	}
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}

	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
