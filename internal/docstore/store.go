// Package docstore is the remote document store the itinerary core persists
// to: named collections of schemaless records keyed by opaque ids, with
// field-equality queries and a live snapshot feed per collection.
package docstore

import (
	"context"

	"github.com/neexbeast/tripsync/internal/schedule"
)

// Document is a stored record together with its store-assigned id.
type Document struct {
	ID   string
	Data schedule.Record
}

// Filter is a set of field=value pairs that must all match.
type Filter map[string]any

// Subscription is a live feed handle.
type Subscription interface {
	// Unsubscribe stops the feed and waits for its goroutine to exit.
	// No callback runs after it returns.
	Unsubscribe()
}

// Store is implemented by Postgres and Memory.
type Store interface {
	// Add stores rec as a new document and returns its assigned id.
	Add(ctx context.Context, collection string, rec schedule.Record) (string, error)

	// Set overwrites the document with the given id.
	// Returns schedule.ErrNotFound if it does not exist.
	Set(ctx context.Context, collection, id string, rec schedule.Record) error

	// Get returns a single document. Returns schedule.ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Delete removes a document. Returns schedule.ErrNotFound if it does not exist.
	Delete(ctx context.Context, collection, id string) error

	// List returns every document of the collection in insertion order.
	List(ctx context.Context, collection string) ([]Document, error)

	// QueryEquals returns the documents whose fields equal every pair in f,
	// in insertion order.
	QueryEquals(ctx context.Context, collection string, f Filter) ([]Document, error)

	// Subscribe delivers the full collection to onSnapshot now and again after
	// every change, serially and in order. If the feed fails, onError is
	// called once and the feed ends; it is not restarted.
	Subscribe(ctx context.Context, collection string, onSnapshot func([]Document), onError func(error)) (Subscription, error)
}
