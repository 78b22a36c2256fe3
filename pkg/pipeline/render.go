package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/observability"
	"github.com/matzehuels/sqltree/pkg/render"
)

// RenderWithCacheInfo renders l in every format. hit is true only when all
// formats came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l derivation.Layout, formats []string) (map[string][]byte, bool, error) {
	if len(formats) == 0 {
		formats = []string{DefaultFormat}
	}
	parsed := make([]render.Format, 0, len(formats))
	for _, f := range formats {
		pf, err := render.ParseFormat(f)
		if err != nil {
			return nil, false, err
		}
		parsed = append(parsed, pf)
	}

	layoutHash, err := cache.HashJSON(l)
	if err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte, len(parsed))
	var missing []render.Format
	for _, f := range parsed {
		key := r.Keyer.ArtifactKey(layoutHash, cache.ArtifactKeyOpts{Format: string(f)})
		if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, "artifact")
			artifacts[string(f)] = data
			continue
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
		missing = append(missing, f)
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, names)
	start := time.Now()

	for _, f := range missing {
		data, err := render.Render(ctx, l, f)
		if err != nil {
			hooks.OnRenderComplete(ctx, names, time.Since(start), err)
			return nil, false, err
		}
		artifacts[string(f)] = data
		key := r.Keyer.ArtifactKey(layoutHash, cache.ArtifactKeyOpts{Format: string(f)})
		if r.Cache.Set(ctx, key, data, cache.TTLArtifact) == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	hooks.OnRenderComplete(ctx, names, time.Since(start), nil)
	return artifacts, false, nil
}

// Render renders l in every format; see RenderWithCacheInfo.
func (r *Runner) Render(ctx context.Context, l derivation.Layout, formats []string) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, l, formats)
	return artifacts, err
}
