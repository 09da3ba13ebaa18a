// Package query implements keyword and tag search over the feed cache.
package query

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"rss_notify/internal/feedcache"
	"rss_notify/internal/model"
)

// ErrEmptyQuery is returned when the search text is empty or only whitespace.
var ErrEmptyQuery = errors.New("empty query")

// SnapshotSource provides the snapshot searches run against.
type SnapshotSource interface {
	Snapshot() *model.Snapshot
}

// Engine answers search requests against the current snapshot.
// Results keep snapshot order; there is no relevance ranking.
type Engine struct {
	src SnapshotSource
}

// New creates an Engine reading from src.
func New(src SnapshotSource) *Engine {
	return &Engine{src: src}
}

// SearchCreators returns creators whose name contains keyword, ignoring case.
func (e *Engine) SearchCreators(keyword string, offset, limit int) ([]model.Creator, error) {
	kw, err := normalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	matched := lo.Filter(e.src.Snapshot().Creators, func(c model.Creator, _ int) bool {
		return contains(c.Name, kw)
	})
	return feedcache.Paginate(matched, offset, limit), nil
}

// SearchPosts returns items whose title contains keyword, ignoring case.
func (e *Engine) SearchPosts(keyword string, offset, limit int) ([]model.Item, error) {
	kw, err := normalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	matched := lo.Filter(e.src.Snapshot().Items, func(it model.Item, _ int) bool {
		return contains(it.Title, kw)
	})
	return feedcache.Paginate(matched, offset, limit), nil
}

// SearchPostsByTag returns items with at least one tag containing tag, ignoring case.
func (e *Engine) SearchPostsByTag(tag string, offset, limit int) ([]model.Item, error) {
	kw, err := normalizeKeyword(tag)
	if err != nil {
		return nil, err
	}
	matched := lo.Filter(e.src.Snapshot().Items, func(it model.Item, _ int) bool {
		return lo.SomeBy(it.Tags, func(t string) bool { return contains(t, kw) })
	})
	return feedcache.Paginate(matched, offset, limit), nil
}

func normalizeKeyword(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyQuery
	}
	return strings.ToLower(s), nil
}

// contains expects kw to be lowercased already.
func contains(text, kw string) bool {
	return strings.Contains(strings.ToLower(text), kw)
}
