package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Alice Smith | LinkedIn</title>
  <meta name="description" content="Staff engineer at Example Corp">
  <script>window.tracking = "do-not-leak";</script>
</head>
<body>
  <nav class="global-nav">Home Jobs Messaging</nav>
  <main class="profile">
    <h1>Alice Smith</h1>
    <p>Staff engineer at Example Corp with twelve years building distributed storage systems and developer tooling.</p>
    <p>Previously led the platform team at Acme, where she shipped the company's first multi-region database deployment.</p>
  </main>
  <footer>Footer links</footer>
  <style>.x{color:red}</style>
</body>
</html>`

func TestDocumentText_DropsScriptsWithoutReadability(t *testing.T) {
	html := `<html><head><script>var leaked = 1;</script></head>
<body><p>Hello world</p><script>alert("nope")</script></body></html>`

	text := DocumentText(html, "")

	assert.Equal(t, "Hello world", text)
}

func TestDocumentText_FallbackDropsSiteChrome(t *testing.T) {
	html := `<html><body>
<nav>Home Jobs Messaging</nav>
<div class="msg-overlay-list"><a href="/m/1">Bob</a> <a href="/m/2">Carol</a></div>
<div id="profile"><h1>Alice Smith</h1><p>Staff engineer</p></div>
<div class="footer-links"><a href="/about">About</a></div>
</body></html>`

	text := DocumentText(html, "")

	assert.Contains(t, text, "Alice Smith")
	assert.Contains(t, text, "Staff engineer")
	assert.NotContains(t, text, "Messaging")
	assert.NotContains(t, text, "Carol")
	assert.NotContains(t, text, "About")
}

func TestIsChrome_KeepsContentWithNavLikeClass(t *testing.T) {
	html := `<html><body><section class="menu-of-skills">Go, distributed systems, storage engines and more</section></body></html>`

	assert.Contains(t, DocumentText(html, ""), "distributed systems")
}

func TestDocumentText_UsesReadabilityForArticles(t *testing.T) {
	text := DocumentText(profileHTML, "https://www.linkedin.com/in/alice")

	assert.Contains(t, text, "distributed storage systems")
	assert.NotContains(t, text, "do-not-leak")
	assert.NotContains(t, text, "color:red")
}

func TestExtractMeta(t *testing.T) {
	title, desc := ExtractMeta(profileHTML)
	assert.Equal(t, "Alice Smith | LinkedIn", title)
	assert.Equal(t, "Staff engineer at Example Corp", desc)

	og := `<html><head><title>fallback</title>
<meta property="og:title" content="OG Title"></head><body></body></html>`
	title, desc = ExtractMeta(og)
	assert.Equal(t, "OG Title", title)
	assert.Empty(t, desc)
}

func TestApplyCSSSelector(t *testing.T) {
	out, err := ApplyCSSSelector(profileHTML, "main.profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Smith")
	assert.NotContains(t, out, "Footer links")

	out, err = ApplyCSSSelector(profileHTML, "section.nothing")
	require.NoError(t, err)
	assert.Equal(t, profileHTML, out, "no match keeps the document")

	_, err = ApplyCSSSelector(profileHTML, "[[")
	assert.Error(t, err)
}

func TestRemoveSelectors(t *testing.T) {
	out := RemoveSelectors(profileHTML, []string{"nav", "footer"})
	assert.NotContains(t, out, "Home Jobs Messaging")
	assert.NotContains(t, out, "Footer links")
	assert.Contains(t, out, "Alice Smith")

	assert.Equal(t, "<p>x</p>", RemoveSelectors("<p>x</p>", nil))
	assert.Equal(t, "<p>x</p>", RemoveSelectors("<p>x</p>", []string{"nav"}), "no match keeps the input")
}

func TestCleanFile(t *testing.T) {
	c := NewCleaner()

	doc, err := c.CleanFile(profileHTML, "https://www.linkedin.com/in/alice", "main")

	require.NoError(t, err)
	assert.Equal(t, "Alice Smith | LinkedIn", doc.Title)
	assert.Equal(t, "Staff engineer at Example Corp", doc.Description)
	assert.Contains(t, doc.Markdown, "distributed storage systems")
	assert.NotContains(t, doc.Markdown, "Footer links")
	assert.NotContains(t, doc.Markdown, "do-not-leak")
	assert.False(t, strings.HasPrefix(doc.Markdown, " "))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 3, EstimateTokens("abcdefghi"))
}
