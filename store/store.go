// Package store defines the document-store collaborator used for products,
// users, transactions, and local persisted state. Documents are addressed
// by "collection/id" keys and serialized as JSON.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no document exists for the key. A
// missing record is a distinct outcome, never folded into other failures.
var ErrNotFound = errors.New("store: document not found")

// Store is the read/write contract shared by every backend.
type Store interface {
	// Get reads the document at key into v.
	Get(ctx context.Context, key string, v any) error

	// Set writes v as the document at key, replacing any previous value.
	Set(ctx context.Context, key string, v any) error

	// Delete removes the document at key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Append adds v to a collection under a generated id and returns it.
	Append(ctx context.Context, collection string, v any) (string, error)

	// Scan visits every document in a collection. The callback receives the
	// document id and its raw JSON payload; returning an error stops the
	// scan and is surfaced to the caller.
	Scan(ctx context.Context, collection string, fn func(id string, raw []byte) error) error

	// Close releases backend resources.
	Close() error
}

// SplitKey parses a "collection/id" key.
func SplitKey(key string) (collection, id string, err error) {
	collection, id, ok := strings.Cut(key, "/")
	if !ok || collection == "" || id == "" {
		return "", "", fmt.Errorf("store: malformed key %q, want collection/id", key)
	}
	return collection, id, nil
}

// Key joins a collection and id into a document key.
func Key(collection, id string) string {
	return collection + "/" + id
}
