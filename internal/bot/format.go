package bot

import (
	"fmt"
	"strings"
	"time"

	"rss_notify/internal/model"
	"rss_notify/internal/scheduler"
)

const timeFormat = "2006-01-02 15:04 UTC"

// StatusInfo is the data rendered by /status.
type StatusInfo struct {
	Loaded      bool
	BuiltAt     time.Time
	Feeds       int
	Items       int
	Creators    int
	Failed      []string
	Subscribers int
	Seen        int
	State       string
	Last        scheduler.Report
	Skipped     int64
}

// FormatPosts formats a page of items. Numbering starts at offset+1.
func FormatPosts(header string, items []model.Item, offset int) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s\n", offset+i+1, it.Title)
		if it.Author != "" {
			fmt.Fprintf(&b, "   by %s\n", it.Author)
		}
		if len(it.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(it.Tags, ", "))
		}
		if it.Published != nil {
			fmt.Fprintf(&b, "   %s\n", it.Published.Format(timeFormat))
		}
		if it.Link != "" {
			fmt.Fprintf(&b, "   %s\n", it.Link)
		}
	}
	return b.String()
}

// FormatCreators formats a page of creators. Numbering starts at offset+1.
func FormatCreators(header string, creators []model.Creator, offset int) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, c := range creators {
		fmt.Fprintf(&b, "\n%d. %s (@%s)\n   %s\n", offset+i+1, c.Name, c.Handle, c.Link)
	}
	return b.String()
}

// FormatStatus formats the cache and dispatcher status.
func FormatStatus(s StatusInfo) string {
	var b strings.Builder
	if s.Loaded {
		fmt.Fprintf(&b, "Cache built: %s\n", s.BuiltAt.Format(timeFormat))
	} else {
		b.WriteString("Cache built: not yet\n")
	}
	fmt.Fprintf(&b, "Feeds: %d (%d failed)\n", s.Feeds, len(s.Failed))
	fmt.Fprintf(&b, "Posts: %d\n", s.Items)
	fmt.Fprintf(&b, "Creators: %d\n", s.Creators)
	if s.Subscribers >= 0 {
		fmt.Fprintf(&b, "Subscribers: %d\n", s.Subscribers)
	} else {
		b.WriteString("Subscribers: unavailable\n")
	}
	fmt.Fprintf(&b, "Announced posts: %d\n", s.Seen)

	if s.State != "" {
		fmt.Fprintf(&b, "\nDispatcher: %s\n", s.State)
		if !s.Last.Finished.IsZero() {
			fmt.Fprintf(&b, "Last cycle: %s, %d new, %d delivered, %d failed\n",
				s.Last.Finished.Format(timeFormat), s.Last.NewItems, s.Last.Delivered, s.Last.Failed)
		}
		if s.Skipped > 0 {
			fmt.Fprintf(&b, "Skipped ticks: %d\n", s.Skipped)
		}
	}

	for _, u := range s.Failed {
		fmt.Fprintf(&b, "\nFailed: %s", u)
	}
	return strings.TrimRight(b.String(), "\n")
}
