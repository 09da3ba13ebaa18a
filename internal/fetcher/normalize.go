package fetcher

import (
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"rss_notify/internal/model"
)

// DefaultTitle replaces a missing item title.
const DefaultTitle = "Untitled"

// Normalize converts a parsed feed item into a model.Item.
// Items without a link are kept but have no identity.
func Normalize(item *gofeed.Item) model.Item {
	out := model.Item{
		Title:  strings.TrimSpace(item.Title),
		Link:   itemLink(item),
		Author: itemAuthor(item),
		Tags:   itemTags(item),
	}
	if out.Title == "" {
		out.Title = DefaultTitle
	}

	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		out.Published = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		out.Published = &t
	}
	return out
}

// NormalizeAll normalizes items from one source, preserving their order.
func NormalizeAll(source string, items []*gofeed.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		n := Normalize(it)
		n.Source = source
		out = append(out, n)
	}
	return out
}

// CreatorFor derives the creator record of an item.
// It returns false when the item has no author or no identity.
func CreatorFor(item model.Item) (model.Creator, bool) {
	if item.Author == "" || !item.HasIdentity() {
		return model.Creator{}, false
	}
	return model.Creator{
		Name:   item.Author,
		Handle: Handle(item.Author),
		Link:   item.Link,
	}, true
}

// Handle turns an author name into a lowercase handle with underscores for spaces.
func Handle(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// itemAuthor prefers the explicit author name, then any listed author,
// then the author's reference field.
func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil {
		if name := strings.TrimSpace(item.Author.Name); name != "" {
			return name
		}
	}
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			return name
		}
	}
	if item.Author != nil {
		return strings.TrimSpace(item.Author.Email)
	}
	return ""
}

func itemTags(item *gofeed.Item) []string {
	tags := lo.FilterMap(item.Categories, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	})
	if len(tags) == 0 {
		return nil
	}
	return lo.Uniq(tags)
}
