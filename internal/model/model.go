// Package model defines the domain types used across the application.
package model

import "time"

// Item is a single feed entry after normalization.
// Two items with the same Link are the same item.
type Item struct {
	Title     string
	Link      string
	Author    string
	Tags      []string
	Published *time.Time
	Source    string
}

// HasIdentity reports whether the item can take part in dedup and creator derivation.
func (i Item) HasIdentity() bool {
	return i.Link != ""
}

// Creator is a unique author derived from cached items.
type Creator struct {
	Name   string
	Handle string
	Link   string
}

// Subscriber is a chat that receives notifications about new items.
type Subscriber struct {
	ChatID      int64
	DisplayName string
	CreatedAt   time.Time
}

// Snapshot is an immutable view of all cached items at a point in time.
type Snapshot struct {
	Items    []Item
	Creators []Creator
	BuiltAt  time.Time
	// Failed lists the feed URLs that contributed no items to this snapshot.
	Failed []string
}
