// Package feedcache holds the latest normalized snapshot of all configured feeds.
package feedcache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"rss_notify/internal/fetcher"
	"rss_notify/internal/model"
)

// DefaultConcurrency is the number of feeds fetched in parallel when none is configured.
const DefaultConcurrency = 4

// Source fetches the raw items of a single feed URL.
type Source interface {
	Fetch(ctx context.Context, url string) ([]*gofeed.Item, error)
}

// Build fetches every url and assembles a snapshot in configured source order.
// A failing source is logged and contributes no items; Build itself never fails.
func Build(ctx context.Context, src Source, urls []string, concurrency int, log *slog.Logger) *model.Snapshot {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([][]model.Item, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, url := range urls {
		g.Go(func() error {
			raw, err := src.Fetch(ctx, url)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = fetcher.NormalizeAll(url, raw)
			return nil
		})
	}
	_ = g.Wait()

	snap := &model.Snapshot{BuiltAt: time.Now().UTC()}
	for i, url := range urls {
		if errs[i] != nil {
			log.Warn("skip feed", "url", url, "parse_error", fetcher.IsParseError(errs[i]), "error", errs[i])
			snap.Failed = append(snap.Failed, url)
			continue
		}
		snap.Items = append(snap.Items, results[i]...)
	}
	snap.Creators = deriveCreators(snap.Items)
	return snap
}

// deriveCreators keeps the first item seen for every author.
func deriveCreators(items []model.Item) []model.Creator {
	creators := lo.FilterMap(items, func(it model.Item, _ int) (model.Creator, bool) {
		return fetcher.CreatorFor(it)
	})
	return lo.UniqBy(creators, func(c model.Creator) string { return c.Name })
}

// Cache publishes snapshots atomically. Readers never block on a rebuild.
type Cache struct {
	src         Source
	urls        []string
	concurrency int
	log         *slog.Logger

	current atomic.Pointer[model.Snapshot]
}

// New creates a Cache over the given feed URLs.
func New(src Source, urls []string, concurrency int, log *slog.Logger) *Cache {
	return &Cache{
		src:         src,
		urls:        append([]string(nil), urls...),
		concurrency: concurrency,
		log:         log,
	}
}

// Refresh rebuilds the snapshot and publishes it.
// If ctx is cancelled during the build the previous snapshot stays current.
func (c *Cache) Refresh(ctx context.Context) *model.Snapshot {
	snap := Build(ctx, c.src, c.urls, c.concurrency, c.log)
	if ctx.Err() != nil {
		c.log.Warn("refresh abandoned", "error", ctx.Err())
		return c.Snapshot()
	}
	c.current.Store(snap)
	c.log.Debug("snapshot published",
		"items", len(snap.Items),
		"creators", len(snap.Creators),
		"failed_feeds", len(snap.Failed),
	)
	return snap
}

// Bootstrap builds a snapshot only if nothing has been published yet.
// The result is published only while the cache is still empty, so a
// snapshot published by Refresh in the meantime is never replaced.
func (c *Cache) Bootstrap(ctx context.Context) *model.Snapshot {
	if snap := c.current.Load(); snap != nil {
		return snap
	}
	snap := Build(ctx, c.src, c.urls, c.concurrency, c.log)
	if ctx.Err() != nil {
		return c.Snapshot()
	}
	if !c.current.CompareAndSwap(nil, snap) {
		c.log.Debug("bootstrap snapshot discarded, cache already published")
		return c.current.Load()
	}
	return snap
}

// Loaded reports whether a snapshot has been published.
func (c *Cache) Loaded() bool {
	return c.current.Load() != nil
}

// Snapshot returns the current snapshot, or an empty one before the first refresh.
func (c *Cache) Snapshot() *model.Snapshot {
	if snap := c.current.Load(); snap != nil {
		return snap
	}
	return &model.Snapshot{}
}

// Items returns a page of cached items.
func (c *Cache) Items(offset, limit int) []model.Item {
	return Paginate(c.Snapshot().Items, offset, limit)
}

// Creators returns a page of creators derived from cached items.
func (c *Cache) Creators(offset, limit int) []model.Creator {
	return Paginate(c.Snapshot().Creators, offset, limit)
}

// Paginate returns at most limit elements starting at offset.
// Out-of-range offsets and non-positive limits yield an empty slice.
func Paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := len(items)
	if limit < end-offset {
		end = offset + limit
	}
	return lo.Slice(items, offset, end)
}
