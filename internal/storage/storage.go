// Package storage defines the subscriber directory and its SQL implementation.
package storage

import (
	"context"

	"rss_notify/internal/model"
)

// Directory is the interface for subscriber persistence.
type Directory interface {
	// AddSubscriber registers a subscriber. Adding an existing chat ID is a
	// no-op that reports created == false.
	AddSubscriber(ctx context.Context, sub model.Subscriber) (created bool, err error)
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
	CountSubscribers(ctx context.Context) (int, error)

	Close() error
}
