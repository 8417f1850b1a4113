package browseragent

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// interactiveTags is the fixed set of tags worth surfacing to the LLM's
// addressing scheme.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "option": true, "label": true,
}

// DOMSnapshotter produces a BrowserStateSummary's selector map: a stable
// index -> element-descriptor mapping built by walking the page's raw HTML
// with golang.org/x/net/html.
type DOMSnapshotter struct{}

// NewDOMSnapshotter returns a snapshotter.
func NewDOMSnapshotter() *DOMSnapshotter {
	return &DOMSnapshotter{}
}

// BuildSelectorMap parses rawHTML and returns the index -> DOMHistoryElement
// mapping used as the LLM's addressing scheme for this snapshot.
// branch_path_hash is derived purely from document structure, so honoring
// recomputeHashes=false would return the same values; the flag exists for
// facade implementations that cache snapshots.
func (s *DOMSnapshotter) BuildSelectorMap(rawHTML string, recomputeHashes bool) (map[int]*DOMHistoryElement, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	out := map[int]*DOMHistoryElement{}
	idx := 0
	nodeID := 0
	var walk func(n *html.Node, path []int)
	walk = func(n *html.Node, path []int) {
		nodeID++
		if n.Type == html.ElementNode {
			childOrdinal := len(path)
			myPath := append(append([]int{}, path...), childOrdinal)
			if interactiveTags[n.Data] {
				hash := branchPathHash(n.Data, myPath)
				attrs := map[string]string{}
				for _, a := range n.Attr {
					attrs[a.Key] = a.Val
				}
				el := &DOMHistoryElement{
					NodeID:         nodeID,
					HighlightIndex: idx,
					TagName:        n.Data,
					Attributes:     attrs,
					Text:           textContent(n),
					BranchPathHash: hash,
				}
				out[idx] = el
				idx++
			}
			ordinal := 0
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode {
					walk(c, append(append([]int{}, myPath...), ordinal))
					ordinal++
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, path)
		}
	}
	walk(doc, nil)
	return out, nil
}

// branchPathHash computes a stable, structure-derived identifier for an
// element: sha256 over its tag name plus its ordinal path from the document
// root. Two elements across snapshots are "the same" iff this hash matches.
func branchPathHash(tag string, path []int) string {
	var b strings.Builder
	b.WriteString(tag)
	for _, p := range path {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(p))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// FilterAttributes returns only the attributes named in include, in that
// order, formatted as the Message Manager's interactive-element listing
// expects: `k="v"` pairs.
func FilterAttributes(el *DOMHistoryElement, include []string) string {
	var parts []string
	for _, key := range include {
		if v, ok := el.Attributes[key]; ok {
			parts = append(parts, key+`="`+v+`"`)
		}
	}
	return strings.Join(parts, " ")
}
