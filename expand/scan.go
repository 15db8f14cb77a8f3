package expand

import (
	"golang.org/x/net/html"

	"bpm/emote"
	"bpm/page"
)

// stateAttr marks anchors already rewritten by expansion.
const stateAttr = "data-bpm-state"

// Scan collects emote references from links of the region into batch and
// returns number of accepted occurrences. Every occurrence is attributed to
// its nearest region, id decides whether that is the distinguished one. Link
// targets are taken verbatim from the document. Document is not modified.
func Scan(region *html.Node, id Identity, batch *emote.Batch) int {
	count := 0
	for _, a := range page.Links(region) {
		if _, done := page.LookupAttr(a, stateAttr); done {
			continue
		}
		href, ok := page.LookupAttr(a, "href")
		if !ok {
			continue
		}
		if _, ok := batch.Add(emote.Occurrence{Region: id.owner(region, a), Anchor: a, Raw: href}); ok {
			count++
		}
	}
	return count
}
