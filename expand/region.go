package expand

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"bpm/page"
)

// Identity holds distinguished content block of a page context. It is
// established once, before any pass, and never changes afterwards.
type Identity struct {
	node *html.Node
}

// Identify locates distinguished region of the document. Absence of the
// region is not an error: all regions are treated as ordinary then.
func Identify(doc *page.Document, containerClass, contentClass string, log *zap.Logger) Identity {
	region, err := doc.FindRegion(containerClass, contentClass)
	if err != nil {
		if errors.Is(err, page.ErrRegionNotFound) {
			log.Info("No distinguished region, all content is ordinary", zap.Error(err))
		}
		return Identity{}
	}
	return Identity{node: region}
}

// Found reports whether page has distinguished region.
func (id Identity) Found() bool {
	return id.node != nil
}

// IsDistinguished compares n with distinguished region by identity.
func (id Identity) IsDistinguished(n *html.Node) bool {
	return id.node != nil && n == id.node
}

// owner returns region a link belongs to: distinguished region when the link
// is inside it, region otherwise. Distinguished region may be nested in an
// ordinary one.
func (id Identity) owner(region, link *html.Node) *html.Node {
	if id.node == nil {
		return region
	}
	for n := link.Parent; n != nil; n = n.Parent {
		if n == id.node {
			return id.node
		}
		if n == region {
			break
		}
	}
	return region
}
