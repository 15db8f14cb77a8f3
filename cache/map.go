package cache

import (
	"context"

	"bpm/emote"
)

// Map is in-memory emote cache.
type Map map[emote.Name]emote.Record

// Lookup implements resolve.Lookup.
func (m Map) Lookup(ctx context.Context, names []emote.Name) (map[emote.Name]emote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[emote.Name]emote.Record, len(names))
	for _, n := range names {
		if r, ok := m[n]; ok {
			out[n] = r
		}
	}
	return out, nil
}
