package browseragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<html><body>
<nav><a href="/">Home</a> <a href="/about">About</a> <a href="/contact">Contact</a></nav>
<div id="content">
  <article>
    <p>Browser automation agents observe a page, decide on an action, and execute it against a live browser session.</p>
    <p>The loop repeats until the task is done or a budget is exhausted.</p>
  </article>
</div>
<footer><a href="/privacy">Privacy</a> <a href="/terms">Terms</a></footer>
<script>console.log("tracking")</script>
</body></html>`

func TestExtractReadableTextPrefersArticleBody(t *testing.T) {
	text, err := ExtractReadableText(articlePage)
	require.NoError(t, err)
	assert.Contains(t, text, "observe a page")
	assert.Contains(t, text, "budget is exhausted")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Privacy")
}

func TestExtractReadableTextFallsBackOnFlatPages(t *testing.T) {
	text, err := ExtractReadableText(`<html><body>just a bare sentence</body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "just a bare sentence", text)
}

func TestExtractReadableTextBadHTMLStillParses(t *testing.T) {
	text, err := ExtractReadableText(`<p>unclosed paragraph`)
	require.NoError(t, err)
	assert.Contains(t, text, "unclosed paragraph")
}
