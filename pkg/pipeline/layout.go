package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/observability"
)

// LayoutWithCacheInfo lays out p, reusing a cached layout for the same
// payload and options. hit reports a cache hit.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, p derivation.Payload, opts derivation.Options) (l derivation.Layout, hit bool, err error) {
	hash, err := p.Hash()
	if err != nil {
		return derivation.Layout{}, false, err
	}
	key := r.Keyer.LayoutKey(hash, opts.KeyOpts())

	if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
		var cached derivation.Layout
		if json.Unmarshal(data, &cached) == nil {
			observability.Cache().OnCacheHit(ctx, "layout")
			return cached, true, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(p.Nodos))
	start := time.Now()
	l = derivation.Build(p, opts)
	hooks.OnLayoutComplete(ctx, len(l.Nodes), time.Since(start), nil)

	if data, err := json.Marshal(l); err == nil {
		if r.Cache.Set(ctx, key, data, cache.TTLLayout) == nil {
			observability.Cache().OnCacheSet(ctx, "layout", len(data))
		}
	}
	return l, false, nil
}

// Layout lays out p; see LayoutWithCacheInfo.
func (r *Runner) Layout(ctx context.Context, p derivation.Payload, opts derivation.Options) (derivation.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, p, opts)
	return l, err
}
