package compile

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"bpm/emote"
)

// Rules maps selector to its CSS properties.
type Rules map[string]map[string]string

// Data is everything produced from emote definitions.
type Data struct {
	Rules     Rules
	NSFWRules Rules
	Records   []emote.Record
}

// Build splits emotes into SFW and NSFW rules and cache records. Ignored
// emotes are skipped, conflicting selectors or names are errors.
func Build(emotes []Emote) (*Data, error) {
	d := &Data{Rules: Rules{}, NSFWRules: Rules{}}
	names := make(map[string]string)

	for _, e := range emotes {
		if e.Ignore {
			continue
		}

		rules := d.Rules
		if e.NSFW {
			rules = d.NSFWRules
		}
		if !e.NoCSS {
			if _, exists := rules[e.Selector]; exists {
				return nil, fmt.Errorf("conflicting selector %s (emote %s in %s)", e.Selector, e.Name, e.File)
			}
			rules[e.Selector] = maps.Clone(e.CSS)
		}

		if !e.NoMap {
			if prev, exists := names[e.Name]; exists {
				return nil, fmt.Errorf("duplicate emote %s in %s, already defined in %s", e.Name, e.File, prev)
			}
			names[e.Name] = e.File
			d.Records = append(d.Records, emote.Record{
				Name:   emote.Name(e.Name),
				Class:  strings.TrimLeft(e.Selector, "."),
				NSFW:   e.NSFW,
				Source: e.File,
			})
		}
	}
	return d, nil
}

// Simplify reduces stylesheet size by moving properties shared by many
// selectors into combined rules.
func Simplify(rules Rules) {
	// value -> selectors having it, per property, as of before condensing
	properties := make(map[string]map[string][]string)
	for _, sel := range sortedKeys(rules) {
		for prop, val := range rules[sel] {
			if properties[prop] == nil {
				properties[prop] = make(map[string][]string)
			}
			properties[prop][val] = append(properties[prop][val], sel)
		}
	}

	condense := func(prop, val string, which []string) {
		if which == nil {
			which = properties[prop][val]
		}
		if len(which) < 2 {
			return
		}
		key := strings.Join(which, ",")
		if rules[key] == nil {
			rules[key] = make(map[string]string)
		}
		rules[key][prop] = val
		for _, sel := range which {
			delete(rules[sel], prop)
		}
	}

	condense("display", "block", nil)
	condense("clear", "none", nil)
	condense("float", "left", nil)

	// many emotes are 70px squares
	var square []string
	for _, sel := range properties["width"]["70px"] {
		if slices.Contains(properties["height"]["70px"], sel) {
			square = append(square, sel)
		}
	}
	condense("width", "70px", square)
	condense("height", "70px", square)

	// multi-emote spritesheets
	for _, image := range sortedKeys(properties["background-image"]) {
		condense("background-image", image, nil)
	}

	for _, sel := range properties["background-position"]["0px 0px"] {
		delete(rules[sel], "background-position")
	}

	for sel, props := range rules {
		if len(props) == 0 {
			delete(rules, sel)
		}
	}
}

// WriteCSS outputs rules one per line in stable order.
func WriteCSS(w io.Writer, rules Rules, header string) error {
	if len(header) > 0 {
		if _, err := fmt.Fprintf(w, "/*\n * %s\n */\n\n", header); err != nil {
			return err
		}
	}
	for _, sel := range sortedKeys(rules) {
		props := rules[sel]
		names := make([]string, 0, len(props))
		for p := range props {
			names = append(names, p)
		}
		sort.Sort(natural.StringSlice(names))

		decls := make([]string, 0, len(names))
		for _, p := range names {
			decls = append(decls, p+":"+props[p])
		}
		if _, err := fmt.Fprintf(w, "%s{%s}\n", sel, strings.Join(decls, ";")); err != nil {
			return err
		}
	}
	return nil
}
