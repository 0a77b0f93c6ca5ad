// Package catalog resolves raw product identifiers and free-text queries
// into canonical product records backed by the document store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ichaaulia/supercart/cart"
	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	storepkg "github.com/ichaaulia/supercart/store"
)

// ErrNotFound is returned by ResolveByID for an unknown product. Store
// failures surface as distinct errors and are never folded into this.
var ErrNotFound = errspkg.ErrNotFound

// productDoc is the wire shape of a product document; the id lives in the
// document key.
type productDoc struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Resolver looks up products in the document store.
type Resolver struct {
	store storepkg.Store
}

// NewResolver wires a Resolver to the given store.
func NewResolver(st storepkg.Store) (*Resolver, error) {
	if st == nil {
		return nil, errspkg.ErrStoreRequired
	}
	return &Resolver{store: st}, nil
}

// NormalizeID canonicalises a raw product identifier: surrounding
// whitespace trimmed, uppercased.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ResolveByID fetches the product for a raw identifier. The identifier is
// normalized before lookup. A missing record yields ErrNotFound.
func (r *Resolver) ResolveByID(ctx context.Context, rawID string) (cart.Product, error) {
	id := NormalizeID(rawID)
	if id == "" {
		return cart.Product{}, errspkg.NewValidationError("product id", "must not be empty")
	}

	var doc productDoc
	err := r.store.Get(ctx, storepkg.Key("products", id), &doc)
	if errors.Is(err, storepkg.ErrNotFound) {
		return cart.Product{}, ErrNotFound
	}
	if err != nil {
		return cart.Product{}, fmt.Errorf("catalog: lookup %s: %w", id, err)
	}

	return cart.Product{ID: id, Name: doc.Name, Price: doc.Price}, nil
}

// Search returns every product whose name contains text, case-insensitive.
// No matches yields an empty slice; store errors surface to the caller.
func (r *Resolver) Search(ctx context.Context, text string) ([]cart.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	var results []cart.Product
	err := r.store.Scan(ctx, "products", func(id string, raw []byte) error {
		var doc productDoc
		if err := jsoncodec.Unmarshal(raw, &doc); err != nil {
			// A single malformed document should not sink the whole search.
			return nil
		}
		if strings.Contains(strings.ToLower(doc.Name), needle) {
			results = append(results, cart.Product{ID: id, Name: doc.Name, Price: doc.Price})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: search %q: %w", text, err)
	}
	return results, nil
}
