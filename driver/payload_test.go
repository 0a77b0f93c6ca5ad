package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichaaulia/supercart/internal/engine/jsoncodec"
)

func TestProductIDAcceptedShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"bare string", `"4902430"`, "4902430"},
		{"string with whitespace", `"  4902430  "`, "4902430"},
		{"bare number", `4902430`, "4902430"},
		{"object with id", `{"id": "ABC-1"}`, "ABC-1"},
		{"object with numeric id", `{"id": 12}`, "12"},
		{"object with productId", `{"productId": "XYZ"}`, "XYZ"},
		{"id wins over productId", `{"id": "A", "productId": "B"}`, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ProductID([]byte(tt.payload))
			require.True(t, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestProductIDRejectedShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty string", `""`},
		{"whitespace string", `"   "`},
		{"array", `[1, 2]`},
		{"boolean", `true`},
		{"null", `null`},
		{"object without id fields", `{"sku": "4902430"}`},
		{"object with non-scalar id", `{"id": {"nested": true}}`},
		{"not json", `not-json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ProductID([]byte(tt.payload))
			assert.False(t, ok)
		})
	}
}

func TestSnapshotWireFormat(t *testing.T) {
	snap := Snapshot{
		ID: "ichaa",
		Items: []SnapshotItem{
			{ID: "4902430", Qty: 2},
			{ID: "8998866", Qty: 1},
		},
	}

	raw, err := jsoncodec.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "ichaa",
		"items": [
			{"id": "4902430", "qty": 2},
			{"id": "8998866", "qty": 1}
		]
	}`, string(raw))
}

func TestPaymentStatusDecode(t *testing.T) {
	var status PaymentStatus
	err := jsoncodec.Unmarshal([]byte(`{"status":"paid","paymentMethod":"qris","totalAmount":125000}`), &status)
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, status.Status)
	assert.Equal(t, "qris", status.PaymentMethod)
	assert.Equal(t, int64(125000), status.TotalAmount)
}
