// Package history persists completed transactions and serves them back for
// the receipt and history views.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ichaaulia/supercart/cart"
	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
	storepkg "github.com/ichaaulia/supercart/store"
)

const collection = "transactions"

// Item is one purchased line frozen at payment time. Name and price are
// copied out of the catalog so later catalog edits never rewrite history.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Qty      int    `json:"qty"`
	Subtotal int64  `json:"subtotal"`
}

// Record is one completed transaction.
type Record struct {
	ID         string    `json:"id"`
	CartNumber string    `json:"cartNumber"`
	Items      []Item    `json:"items"`
	TotalItems int       `json:"totalItems"`
	TotalPrice int64     `json:"totalPrice"`
	PaidAt     time.Time `json:"paidAt"`
}

// Recorder writes and reads transaction records in the document store. It
// satisfies the driver's TransactionRecorder contract.
type Recorder struct {
	store storepkg.Store
}

// NewRecorder wires a Recorder to the given store.
func NewRecorder(st storepkg.Store) (*Recorder, error) {
	if st == nil {
		return nil, errspkg.ErrStoreRequired
	}
	return &Recorder{store: st}, nil
}

// Save freezes the session into a Record and appends it. The generated
// record id is returned.
func (r *Recorder) Save(ctx context.Context, session *cart.Session, paidAt time.Time) (string, error) {
	if session == nil {
		return "", errspkg.ErrSessionRequired
	}

	lines := session.Lines()
	items := make([]Item, len(lines))
	for i, line := range lines {
		items[i] = Item{
			ID:       line.Product.ID,
			Name:     line.Product.Name,
			Price:    line.Product.Price,
			Qty:      line.Qty,
			Subtotal: line.Subtotal(),
		}
	}

	record := Record{
		CartNumber: session.ID(),
		Items:      items,
		TotalItems: session.TotalItems(),
		TotalPrice: session.TotalPrice(),
		PaidAt:     paidAt.UTC(),
	}

	id, err := r.store.Append(ctx, collection, record)
	if err != nil {
		return "", fmt.Errorf("history: save transaction: %w", err)
	}
	return id, nil
}

// Get reads one record by id.
func (r *Recorder) Get(ctx context.Context, id string) (Record, error) {
	var record Record
	if err := r.store.Get(ctx, storepkg.Key(collection, id), &record); err != nil {
		return Record{}, err
	}
	record.ID = id
	return record, nil
}

// List returns every record, newest first.
func (r *Recorder) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := r.store.Scan(ctx, collection, func(id string, raw []byte) error {
		var record Record
		if err := jsoncodec.Unmarshal(raw, &record); err != nil {
			// One corrupt document should not hide the rest of the history.
			return nil
		}
		record.ID = id
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list transactions: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].PaidAt.After(records[j].PaidAt)
	})
	return records, nil
}

// MonthGroup is the history view's month bucket, e.g. "2026-08", with
// totals summed over the bucket.
type MonthGroup struct {
	Month      string
	Records    []Record
	TotalItems int
	TotalPrice int64
}

// GroupByMonth buckets records by payment month, newest month first.
// Records inside a bucket keep their newest-first order.
func GroupByMonth(records []Record) []MonthGroup {
	byMonth := make(map[string][]Record)
	var order []string
	for _, record := range records {
		month := record.PaidAt.Format("2006-01")
		if _, seen := byMonth[month]; !seen {
			order = append(order, month)
		}
		byMonth[month] = append(byMonth[month], record)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(order)))

	groups := make([]MonthGroup, len(order))
	for i, month := range order {
		group := MonthGroup{Month: month, Records: byMonth[month]}
		for _, record := range group.Records {
			group.TotalItems += record.TotalItems
			group.TotalPrice += record.TotalPrice
		}
		groups[i] = group
	}
	return groups
}
