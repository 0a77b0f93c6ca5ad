// Package cart holds the authoritative in-memory cart for one point-of-sale
// session and the session state machine around it.
//
// A session moves through three states:
//
//	Unassigned -> AssignedUnpaid (AssignSession)
//	AssignedUnpaid -> AssignedPaid (MarkPaid)
//	AssignedUnpaid/AssignedPaid -> Unassigned (Reset)
//
// There is no direct transition from Unassigned to AssignedPaid.
package cart

import (
	"fmt"
	"sync"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
)

// State identifies where a session is in its lifecycle.
type State int

const (
	Unassigned State = iota
	AssignedUnpaid
	AssignedPaid
)

func (s State) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case AssignedUnpaid:
		return "assigned-unpaid"
	case AssignedPaid:
		return "assigned-paid"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Product is a catalog record. Immutable once fetched; the ID is canonical
// (trimmed, uppercased) and the price is in whole currency units.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Line is one cart entry. Qty is always at least 1; at most one line exists
// per product ID.
type Line struct {
	Product Product
	Qty     int
}

// Subtotal returns price times quantity for this line.
func (l Line) Subtotal() int64 {
	return l.Product.Price * int64(l.Qty)
}

// Session is the cart for one physical shopping cart. Mutations arrive from
// scan handlers, search results, and quantity controls running on separate
// goroutines, so every method takes the session lock.
type Session struct {
	mu    sync.Mutex
	id    string // zero-padded cart number, "" while unassigned
	paid  bool
	lines map[string]*Line
	order []string // product ids in insertion order
}

// NewSession creates an unassigned session with an empty cart.
func NewSession() *Session {
	return &Session{lines: make(map[string]*Line)}
}

// AddProduct merges a resolved product into the cart. An existing line for
// the same product ID gains one unit; otherwise a new line starts at 1.
// Both scanned and searched additions funnel through here, so repeated
// scans of the same code simply accumulate quantity.
func (s *Session) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[p.ID]; ok {
		line.Qty++
		return
	}
	s.lines[p.ID] = &Line{Product: p, Qty: 1}
	s.order = append(s.order, p.ID)
}

// Increment raises the quantity for productID by one. Unknown ids are
// ignored.
func (s *Session) Increment(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[productID]; ok {
		line.Qty++
	}
}

// Decrement lowers the quantity for productID by one. At quantity 1 this is
// a no-op, never a delete; removing a line is an explicit user action.
func (s *Session) Decrement(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[productID]; ok && line.Qty > 1 {
		line.Qty--
	}
}

// Remove deletes the line for productID unconditionally.
func (s *Session) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[productID]; !ok {
		return
	}
	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AssignSession validates the cart number and stores it zero-padded to
// three digits ("007"). Numbers outside [1,100] fail validation.
// Reassignment while the session is paid is rejected; the caller is
// expected to Reset first.
func (s *Session) AssignSession(number int) error {
	if number < 1 || number > 100 {
		return errspkg.NewValidationError("cart number", "must be between 1 and 100")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paid {
		return errspkg.ErrSessionPaid
	}
	s.id = fmt.Sprintf("%03d", number)
	return nil
}

// MarkPaid transitions the session to assigned-paid. The transition is
// one-way and idempotent: it fires at most once even when the confirmation
// message is delivered twice. Returns true on the first transition.
func (s *Session) MarkPaid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" || s.paid {
		return false
	}
	s.paid = true
	return true
}

// Reset clears all lines, the session identifier, and the paid flag,
// returning the session to unassigned.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[string]*Line)
	s.order = nil
	s.id = ""
	s.paid = false
}

// ID returns the zero-padded cart number, or "" while unassigned.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Paid reports whether the session has been confirmed paid.
func (s *Session) Paid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paid
}

// State derives the lifecycle state from the session fields.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.id == "":
		return Unassigned
	case s.paid:
		return AssignedPaid
	default:
		return AssignedUnpaid
	}
}

// Empty reports whether the cart has no lines.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// Lines returns a snapshot copy of the cart in insertion order.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.lines[id])
	}
	return out
}

// Qty returns the quantity for productID, or 0 when absent.
func (s *Session) Qty(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[productID]; ok {
		return line.Qty
	}
	return 0
}

// TotalItems is the sum of all line quantities, computed on demand.
func (s *Session) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, line := range s.lines {
		total += line.Qty
	}
	return total
}

// TotalPrice is the sum of price times quantity over all lines, computed on
// demand.
func (s *Session) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range s.lines {
		total += line.Subtotal()
	}
	return total
}
