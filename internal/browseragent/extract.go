package browseragent

import (
	"strings"

	"golang.org/x/net/html"
)

// nonContentTags are pruned before scoring: they carry chrome, not content.
var nonContentTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "aside": true, "iframe": true,
}

// ExtractReadableText returns the text of the highest-scoring content
// container in rawHTML. Candidates are scored by text volume discounted by
// link density, so navigation-heavy wrappers lose to the article body.
func ExtractReadableText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var best *html.Node
	bestScore := 0.0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if nonContentTags[n.Data] {
				return
			}
			switch n.Data {
			case "article", "main", "section", "div", "td", "body":
				if score := contentScore(n); score > bestScore {
					bestScore = score
					best = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if best == nil {
		return strings.TrimSpace(visibleText(doc)), nil
	}
	return strings.TrimSpace(visibleText(best)), nil
}

// contentScore is text length discounted by the share of text that lives
// inside links.
func contentScore(n *html.Node) float64 {
	total := float64(len(visibleText(n)))
	if total == 0 {
		return 0
	}
	linked := 0.0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			linked += float64(len(visibleText(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	density := linked / total
	return total * (1 - density)
}

// visibleText concatenates text nodes, skipping pruned subtrees, with
// whitespace collapsed between blocks.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && nonContentTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
