// Package page wraps parsed HTML document of a discussion page and provides
// read and rewrite primitives the expansion works with.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// ErrRegionNotFound is returned when page does not have distinguished
// content block.
var ErrRegionNotFound = errors.New("distinguished region not found")

// Document is a parsed page.
type Document struct {
	Root *html.Node
}

// Load parses page from r. Input encoding is detected from BOM, meta tags or
// contentType (which may be empty) and converted to UTF-8.
func Load(r io.Reader, contentType string) (*Document, error) {
	ur, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("unable to detect page encoding: %w", err)
	}
	root, err := html.Parse(ur)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page: %w", err)
	}
	return &Document{Root: root}, nil
}

// Parse is a convenience wrapper for UTF-8 text.
func Parse(s string) (*Document, error) {
	return Load(strings.NewReader(s), "text/html; charset=utf-8")
}

// Render writes document to w.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// String renders document to string, empty on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Regions returns all elements having class in document order. Elements
// nested inside already returned region are skipped, so every link belongs to
// at most one region.
func (d *Document) Regions(class string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && HasClass(n, class) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.Root)
	return out
}

// FindRegion locates distinguished content block: first element with
// contentClass inside first element with containerClass.
func (d *Document) FindRegion(containerClass, contentClass string) (*html.Node, error) {
	container := findFirst(d.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && HasClass(n, containerClass)
	})
	if container == nil {
		return nil, fmt.Errorf("no element with class %q: %w", containerClass, ErrRegionNotFound)
	}
	region := findFirst(container, func(n *html.Node) bool {
		return n != container && n.Type == html.ElementNode && HasClass(n, contentClass)
	})
	if region == nil {
		return nil, fmt.Errorf("no element with class %q inside %q: %w", contentClass, containerClass, ErrRegionNotFound)
	}
	return region, nil
}

// Head returns head element, nil if there is none.
func (d *Document) Head() *html.Node {
	return findFirst(d.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Head
	})
}

// Title returns text of the title element.
func (d *Document) Title() string {
	t := findFirst(d.Root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Title
	})
	if t == nil {
		return ""
	}
	return strings.TrimSpace(Text(t))
}

// Origin detects community page belongs to from canonical address of the
// page ("https://host/r/NAME/..."). Returns lower-cased name or empty string.
func (d *Document) Origin() string {
	var addr string
	findFirst(d.Root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		switch {
		case n.DataAtom == atom.Link && strings.EqualFold(Attr(n, "rel"), "canonical"):
			addr = Attr(n, "href")
		case n.DataAtom == atom.Meta && Attr(n, "property") == "og:url":
			addr = Attr(n, "content")
		}
		return len(addr) > 0
	})
	if len(addr) == 0 {
		return ""
	}
	u, err := url.Parse(addr)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "r" {
		return ""
	}
	return strings.ToLower(parts[1])
}

// findFirst returns first node (depth first, including n itself) satisfying
// match.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
