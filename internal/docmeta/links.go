package docmeta

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// extractLinks renders body to HTML and collects link destinations:
// anchor hrefs and image sources, in document order, deduplicated.
func extractLinks(body []byte) ([]string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	var links []string
	seen := make(map[string]struct{})
	add := func(dest string) {
		dest = strings.TrimSpace(dest)
		if skipDestination(dest) {
			return
		}
		if _, ok := seen[dest]; ok {
			return
		}
		seen[dest] = struct{}{}
		links = append(links, dest)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				add(getAttr(n, "href"))
			case "img":
				add(getAttr(n, "src"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// skipDestination reports destinations that do not lead to another
// resource: empty values, bare fragments, and special protocols.
func skipDestination(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return true
	}
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(dest, prefix) {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
