package driver

import (
	"strconv"
	"strings"

	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
)

// Snapshot is the outbound message representing current cart contents at
// publish time. Price is deliberately omitted: the cashier side is the
// pricing authority.
type Snapshot struct {
	ID    string         `json:"id"`
	Items []SnapshotItem `json:"items"`
}

// SnapshotItem is one {productId, quantity} pair in a Snapshot.
type SnapshotItem struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// PaymentStatus is the cashier's confirmation message. Only a status of
// "paid" has meaning; every other value is ignored.
type PaymentStatus struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod"`
	TotalAmount   int64  `json:"totalAmount"`
}

// StatusPaid is the only status value that transitions a session.
const StatusPaid = "paid"

// ProductID normalizes an inbound scan payload into a product identifier.
// Three shapes are accepted: a bare JSON string, a number (coerced to its
// decimal string), or an object carrying an "id" or "productId" field. Any
// other shape yields ok == false and the message is ignored. This is the
// single place raw payload shapes are examined; downstream code only ever
// sees the canonical identifier.
func ProductID(raw []byte) (id string, ok bool) {
	var value any
	if err := jsoncodec.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return productIDFromValue(value)
}

func productIDFromValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		id := strings.TrimSpace(v)
		return id, id != ""
	case float64:
		return formatNumericID(v), true
	case map[string]any:
		if id, ok := fieldID(v, "id"); ok {
			return id, true
		}
		if id, ok := fieldID(v, "productId"); ok {
			return id, true
		}
	}
	return "", false
}

func fieldID(obj map[string]any, field string) (string, bool) {
	raw, ok := obj[field]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		id := strings.TrimSpace(v)
		return id, id != ""
	case float64:
		return formatNumericID(v), true
	}
	return "", false
}

// formatNumericID renders scanner payloads that arrive as JSON numbers.
// Barcodes are integral in practice; the fractional form is kept only so a
// fractional payload still resolves to a deterministic string.
func formatNumericID(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
