package expand

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bpm/emote"
	"bpm/page"
	"bpm/prefs"
)

const (
	classEmote   = "bpm-emote"
	classUnknown = "bpm-unknown"
	classAltText = "bpm-alttext"
	classFlag    = "bpflag-"

	stateExpanded = "expanded"
	stateUnknown  = "unknown"
	stateAltText  = "alttext"
)

// Stats counts what happened to occurrences of a pass.
type Stats struct {
	Expanded  int
	Unknown   int
	AltText   int
	Untouched int
}

// policy is expansion policy of a single region.
type policy struct {
	known   bool
	unknown bool
	altText bool
}

func newPolicy(p prefs.Preferences, origin string, distinguished bool) policy {
	known := !p.Blacklisted(origin)
	return policy{
		known:   known,
		unknown: known && !distinguished,
		altText: p.ShowAltText && !distinguished,
	}
}

// applier rewrites occurrences of one batch.
type applier struct {
	prefs    prefs.Preferences
	origin   string
	identity Identity
	policies map[*html.Node]policy
	log      *zap.Logger
}

func newApplier(p prefs.Preferences, origin string, identity Identity, log *zap.Logger) *applier {
	return &applier{
		prefs:    p,
		origin:   origin,
		identity: identity,
		policies: make(map[*html.Node]policy),
		log:      log,
	}
}

func (a *applier) policy(region *html.Node) policy {
	if p, ok := a.policies[region]; ok {
		return p
	}
	p := newPolicy(a.prefs, a.origin, a.identity.IsDistinguished(region))
	a.policies[region] = p
	return p
}

// apply visits every occurrence of the batch once. Anchors rewritten earlier
// are left alone.
func (a *applier) apply(batch *emote.Batch, results emote.Results) Stats {
	var st Stats
	for _, name := range batch.Names() {
		res := results.Get(name)
		for _, o := range batch.Occurrences(name) {
			if _, done := page.LookupAttr(o.Anchor, stateAttr); done {
				st.Untouched++
				continue
			}
			pol := a.policy(o.Region)

			state := ""
			switch {
			case res.Resolved && pol.known:
				if a.expandKnown(o, name, res.Record) {
					state = stateExpanded
					st.Expanded++
				}
			case !res.Resolved && pol.unknown:
				expandUnknown(o.Anchor, name)
				state = stateUnknown
				st.Unknown++
			}
			if pol.altText && addAltText(o.Anchor) {
				if state == "" {
					state = stateAltText
				}
				st.AltText++
			}

			if state == "" {
				st.Untouched++
				continue
			}
			page.SetAttr(o.Anchor, stateAttr, state)
		}
	}
	return st
}

func (a *applier) expandKnown(o emote.Occurrence, name emote.Name, rec emote.Record) bool {
	if rec.NSFW && !a.prefs.EnableAdultContent {
		a.log.Debug("Adult emote is disabled", zap.String("name", string(name)))
		return false
	}
	classes := []string{classEmote, rec.Class}
	if a.prefs.EnableExtraStyling {
		for _, f := range emote.Flags(o.Raw) {
			if c := flagClass(f); len(c) > 0 {
				classes = append(classes, c)
			}
		}
	}
	page.AddClass(o.Anchor, classes...)
	page.SetAttr(o.Anchor, "data-bpm-emote", string(name))
	return true
}

func expandUnknown(anchor *html.Node, name emote.Name) {
	page.AddClass(anchor, classUnknown)
	page.SetText(anchor, "Unknown emote "+string(name))
}

// addAltText puts anchor title text right after the anchor.
func addAltText(anchor *html.Node) bool {
	title := strings.TrimSpace(page.Attr(anchor, "title"))
	if len(title) == 0 {
		return false
	}
	page.InsertAfter(anchor, page.NewElement(atom.Span, title, html.Attribute{Key: "class", Val: classAltText}))
	return true
}

// flagClass turns reference flag into class name keeping only characters
// safe for CSS identifiers.
func flagClass(flag string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, flag)
	if len(clean) == 0 {
		return ""
	}
	return classFlag + clean
}
