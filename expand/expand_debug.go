package expand

import (
	"bpm/page"
	"bpm/utils/debug"
)

// Report returns readable tree of pass outcomes and of every link in content
// regions with its expansion state. It exists for debug reports only.
func Report(doc *page.Document, contentClass string, identity Identity, outcomes []Outcome) string {
	tw := debug.NewTreeWriter()

	tw.Line(0, "Passes: %d", len(outcomes))
	for _, o := range outcomes {
		tw.Line(1, "Pass[%s] regions[%d] names[%d] occurrences[%d]", o.ID, o.Regions, o.Names, o.Occurrences)
		tw.Line(2, "expanded[%d] unknown[%d] alttext[%d] untouched[%d]", o.Stats.Expanded, o.Stats.Unknown, o.Stats.AltText, o.Stats.Untouched)
		if o.ResolveErr != nil {
			tw.TextBlock(2, "Lookup error", o.ResolveErr.Error())
		}
	}

	regions := doc.Regions(contentClass)
	tw.Line(0, "Regions: %d", len(regions))
	for i, r := range regions {
		kind := "ordinary"
		if identity.IsDistinguished(r) {
			kind = "distinguished"
		}
		tw.Line(1, "Region[%d] %s", i, kind)
		for _, a := range page.Links(r) {
			st := page.Attr(a, stateAttr)
			if len(st) == 0 {
				st = "-"
			}
			tw.Line(2, "Link[%q] state[%s] class[%q]", page.Attr(a, "href"), st, page.Attr(a, "class"))
		}
	}
	return tw.String()
}
