// Package resolve turns a batch of canonical emote names into resolution
// results using a single cache lookup.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"bpm/emote"
)

// ErrLookup marks failure of the whole lookup.
var ErrLookup = errors.New("emote lookup failed")

// Lookup fetches records for the set of names in one request. Names without
// records are simply absent from the result. Failures limited to particular
// names are reported as *NameError values (possibly combined with
// multierr), in which case returned records are still used.
type Lookup interface {
	Lookup(ctx context.Context, names []emote.Name) (map[emote.Name]emote.Record, error)
}

// NameError is lookup failure limited to a single name.
type NameError struct {
	Name emote.Name
	Err  error
}

func (e *NameError) Error() string {
	return fmt.Sprintf("emote %s: %v", e.Name, e.Err)
}

func (e *NameError) Unwrap() error {
	return e.Err
}

// Unavailable is a lookup which always fails, used when cache could not be
// opened.
type Unavailable struct {
	Err error
}

func (u Unavailable) Lookup(context.Context, []emote.Name) (map[emote.Name]emote.Record, error) {
	return nil, u.Err
}

// Resolver wraps Lookup enforcing batch semantics: exactly one lookup for
// distinct names and a result for every name.
type Resolver struct {
	lookup  Lookup
	timeout time.Duration
	log     *zap.Logger
}

// New creates resolver, timeout of 0 means no limit.
func New(lookup Lookup, timeout time.Duration, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{lookup: lookup, timeout: timeout, log: log.Named("resolve")}
}

// Resolve returns results for exactly the requested names. On total failure
// every name is unresolved and returned error wraps ErrLookup. Per-name
// failures and malformed records only make affected names unresolved.
func (r *Resolver) Resolve(ctx context.Context, names []emote.Name) (emote.Results, error) {
	names = distinct(names)
	results := emote.Unresolved(names)
	if len(names) == 0 {
		return results, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := r.lookup.Lookup(ctx, names)
	if err != nil {
		failed, partial := nameErrors(err)
		if !partial {
			r.log.Warn("Lookup failed, treating batch as unresolved", zap.Int("names", len(names)), zap.Error(err))
			return results, fmt.Errorf("%w: %w", ErrLookup, err)
		}
		for _, ne := range failed {
			r.log.Debug("Unable to resolve emote", zap.String("name", string(ne.Name)), zap.Error(ne.Err))
			delete(records, ne.Name)
		}
	}

	for name, rec := range records {
		if _, requested := results[name]; !requested {
			continue
		}
		rec.Name = name
		if err := rec.Validate(); err != nil {
			r.log.Debug("Malformed emote record", zap.String("name", string(name)), zap.Error(err))
			continue
		}
		results[name] = emote.Result{Record: rec, Resolved: true}
	}

	r.log.Debug("Batch resolved",
		zap.Int("names", len(names)), zap.Int("resolved", results.Resolved()), zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// nameErrors splits combined error, partial is true only if every part is
// limited to a single name.
func nameErrors(err error) (failed []*NameError, partial bool) {
	for _, e := range multierr.Errors(err) {
		var ne *NameError
		if !errors.As(e, &ne) {
			return nil, false
		}
		failed = append(failed, ne)
	}
	return failed, len(failed) > 0
}

func distinct(names []emote.Name) []emote.Name {
	seen := make(map[emote.Name]struct{}, len(names))
	out := make([]emote.Name, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
