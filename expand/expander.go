// Package expand runs emote expansion passes over a page: it scans content
// regions for references, resolves them in one batch, reads preferences and
// rewrites occurrences according to per-region policy.
package expand

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"bpm/emote"
	"bpm/page"
	"bpm/prefs"
	"bpm/resolve"
)

// ErrPreferences is returned for passes which were abandoned because
// preferences could not be read. Nothing is rewritten by such pass.
var ErrPreferences = errors.New("pass abandoned, preferences unavailable")

// Resolver is what a pass needs from batch resolution.
type Resolver interface {
	Resolve(ctx context.Context, names []emote.Name) (emote.Results, error)
}

var _ Resolver = (*resolve.Resolver)(nil)

// Options are page context settings shared by all passes.
type Options struct {
	// Origin is community page belongs to, checked against blacklist.
	Origin      string
	Resolver    Resolver
	Preferences prefs.Provider
}

// Expander is a page context. Passes may run concurrently, but they never
// touch document at the same time.
type Expander struct {
	mu       sync.Mutex
	identity Identity
	opts     Options
	log      *zap.Logger
}

// New creates page context. identity must be established before.
func New(identity Identity, opts Options, log *zap.Logger) *Expander {
	if log == nil {
		log = zap.NewNop()
	}
	return &Expander{
		identity: identity,
		opts:     opts,
		log:      log.Named("expand").With(zap.String("origin", opts.Origin)),
	}
}

// Outcome describes a finished pass.
type Outcome struct {
	ID          string
	Regions     int
	Names       int
	Occurrences int
	Stats       Stats
	// ResolveErr is set when lookup failed for the whole batch. Pass is
	// still applied with every name unresolved.
	ResolveErr error
}

// Pass scans regions into a fresh batch, resolves it while reading
// preferences and applies rewrites once both are done. Error is returned
// only when preferences could not be read (wraps ErrPreferences), document is
// left untouched then.
func (e *Expander) Pass(ctx context.Context, regions []*html.Node) (Outcome, error) {
	out := Outcome{ID: uuid.NewString(), Regions: len(regions)}
	log := e.log.With(zap.String("pass", out.ID))
	start := time.Now()

	batch := emote.NewBatch()
	e.mu.Lock()
	for _, r := range regions {
		out.Occurrences += Scan(r, e.identity, batch)
	}
	e.mu.Unlock()
	out.Names = batch.Len()

	var (
		p       prefs.Preferences
		results emote.Results
		gate    = prefs.NewGate(ctx, e.opts.Preferences)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = gate.Current()
		return err
	})
	g.Go(func() error {
		// resolution failure does not abort the pass
		results, out.ResolveErr = e.opts.Resolver.Resolve(gctx, batch.Names())
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("Pass abandoned", zap.Error(err))
		return out, fmt.Errorf("%w: %w", ErrPreferences, err)
	}
	if results == nil {
		results = emote.Unresolved(batch.Names())
	}

	e.mu.Lock()
	out.Stats = newApplier(p, e.opts.Origin, e.identity, log).apply(batch, results)
	e.mu.Unlock()

	log.Debug("Pass completed",
		zap.Int("regions", out.Regions), zap.Int("names", out.Names), zap.Int("occurrences", out.Occurrences),
		zap.Int("expanded", out.Stats.Expanded), zap.Int("unknown", out.Stats.Unknown), zap.Int("alttext", out.Stats.AltText),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Run splits regions of the document into passes of at most perPass regions
// (0 - single pass) and runs them concurrently. Failed passes do not stop
// others, their errors are combined.
func (e *Expander) Run(ctx context.Context, doc *page.Document, contentClass string, perPass int) ([]Outcome, error) {
	regions := doc.Regions(contentClass)
	if len(regions) == 0 {
		e.log.Debug("No content regions found", zap.String("class", contentClass))
		return nil, nil
	}
	chunks := split(regions, perPass)

	var (
		outcomes = make([]Outcome, len(chunks))
		errs     = make([]error, len(chunks))
		wg       sync.WaitGroup
	)
	for i, chunk := range chunks {
		wg.Go(func() {
			outcomes[i], errs[i] = e.Pass(ctx, chunk)
		})
	}
	wg.Wait()
	return outcomes, multierr.Combine(errs...)
}

func split(regions []*html.Node, size int) [][]*html.Node {
	if size <= 0 || size >= len(regions) {
		return [][]*html.Node{regions}
	}
	var out [][]*html.Node
	for start := 0; start < len(regions); start += size {
		end := min(start+size, len(regions))
		out = append(out, regions[start:end])
	}
	return out
}
