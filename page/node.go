package page

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Links returns anchor elements under n in document order.
func Links(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.A {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Attr returns value of attribute key, empty if absent.
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

// LookupAttr returns value of attribute key and whether it is present.
func LookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute value replacing existing one.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether element class list contains class.
func HasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(Attr(n, "class")), class)
}

// AddClass appends classes missing from element class list.
func AddClass(n *html.Node, classes ...string) {
	list := strings.Fields(Attr(n, "class"))
	for _, c := range classes {
		if len(c) > 0 && !slices.Contains(list, c) {
			list = append(list, c)
		}
	}
	SetAttr(n, "class", strings.Join(list, " "))
}

// Text returns concatenated text content of n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// SetText replaces all children of n with single text node.
func SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// InsertAfter inserts node right after sibling.
func InsertAfter(sibling, node *html.Node) {
	if sibling.Parent == nil {
		return
	}
	sibling.Parent.InsertBefore(node, sibling.NextSibling)
}

// NewElement creates detached element with attributes and optional text.
func NewElement(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if len(text) > 0 {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}
