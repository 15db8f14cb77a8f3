// Package styles loads stylesheets emote expansion relies on and injects
// them into a page.
package styles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"bpm/page"
	"bpm/prefs"
)

// ElementID is id of injected style element.
const ElementID = "bpm-styles"

const (
	SheetBase     = "bpmotes.css"
	SheetEmotes   = "emote-classes.css"
	SheetNSFW     = "nsfw-emote-classes.css"
	SheetExtraCSS = "extracss.css"
)

// Sheets returns names of stylesheets required by preferences, in the order
// they have to be concatenated.
func Sheets(p prefs.Preferences) []string {
	names := []string{SheetBase, SheetEmotes}
	if p.EnableAdultContent {
		names = append(names, SheetNSFW)
	}
	if p.EnableExtraStyling {
		names = append(names, SheetExtraCSS)
	}
	return names
}

// Loader fetches named stylesheets from a directory and optional custom
// stylesheet.
type Loader struct {
	Dir        string
	CustomPath string
	log        *zap.Logger
}

// NewLoader returns loader for named stylesheets in dir and custom stylesheet
// (may be empty).
func NewLoader(dir, custom string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{Dir: dir, CustomPath: custom, log: log.Named("styles")}
}

// Load fetches all stylesheets required by p concurrently, sanitizes and
// concatenates them. Missing named stylesheets are skipped, any other failure is
// returned.
func (l *Loader) Load(ctx context.Context, p prefs.Preferences) ([]byte, error) {
	names := Sheets(p)
	parts := make([][]byte, len(names)+1)

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			data, err := l.fetch(gctx, filepath.Join(l.Dir, name))
			if errors.Is(err, fs.ErrNotExist) {
				l.log.Warn("Stylesheet not found, skipping", zap.String("name", name))
				return nil
			}
			if err != nil {
				return fmt.Errorf("unable to load stylesheet %s: %w", name, err)
			}
			parts[i] = Sanitize(data, l.log.With(zap.String("name", name)))
			return nil
		})
	}
	if len(l.CustomPath) > 0 {
		g.Go(func() error {
			data, err := l.fetch(gctx, l.CustomPath)
			if err != nil {
				return fmt.Errorf("unable to load custom stylesheet: %w", err)
			}
			parts[len(names)] = Sanitize(data, l.log.With(zap.String("name", l.CustomPath)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		buf.Write(p)
		if p[len(p)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func (l *Loader) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Inject appends style element with css to the document head, replacing
// element injected earlier. Returns false if document has no head.
func Inject(doc *page.Document, data []byte) bool {
	head := doc.Head()
	if head == nil {
		return false
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Style && page.Attr(c, "id") == ElementID {
			head.RemoveChild(c)
			break
		}
	}
	head.AppendChild(page.NewElement(atom.Style, string(data), html.Attribute{Key: "id", Val: ElementID}))
	return true
}

// Sanitize re-serializes stylesheet dropping @import rules and everything
// after unrecoverable syntax error.
func Sanitize(data []byte, log *zap.Logger) []byte {
	p := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	var out bytes.Buffer
	for {
		gt, _, text := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil {
				if err != io.EOF {
					log.Warn("Stylesheet is malformed, truncating", zap.Error(err))
				}
				return out.Bytes()
			}
			continue
		case css.AtRuleGrammar:
			if bytes.EqualFold(text, []byte("@import")) {
				log.Debug("Dropping @import")
				continue
			}
			out.Write(text)
			writeValues(&out, p.Values())
			out.WriteString(";")
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			out.Write(text)
			writeValues(&out, p.Values())
			out.WriteString("{")
		case css.QualifiedRuleGrammar:
			out.Write(text)
			writeValues(&out, p.Values())
			out.WriteString(",")
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			out.Write(text)
			out.WriteString(":")
			writeValues(&out, p.Values())
			out.WriteString(";")
		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			out.WriteString("}\n")
		case css.CommentGrammar:
			// dropped
		default:
			out.Write(text)
		}
	}
}

func writeValues(w *bytes.Buffer, values []css.Token) {
	for _, v := range values {
		w.Write(v.Data)
	}
}
