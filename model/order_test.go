package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusRank(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   int
	}{
		{"Pending", 1},
		{"PENDING", 1},
		{"preparing", 2},
		{"Cooked", 3},
		{"Delivering", 5},
		{"Completed", 99},
		{"", 99},
		{"unknown", 99},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Rank())
		})
	}
}

func TestSortOrdersIsStableByRank(t *testing.T) {
	in := []Order{
		{OrderID: "a", OrderStatus: "Completed"},
		{OrderID: "b", OrderStatus: "Cooked"},
		{OrderID: "c", OrderStatus: "pending"},
		{OrderID: "d", OrderStatus: "Delivering"},
		{OrderID: "e", OrderStatus: "Pending"},
		{OrderID: "f", OrderStatus: "Cancelled"},
		{OrderID: "g", OrderStatus: "Preparing"},
	}

	got := SortOrders(in)

	ids := make([]string, len(got))
	for i, o := range got {
		ids[i] = o.OrderID
	}
	if diff := cmp.Diff([]string{"c", "e", "g", "b", "d", "a", "f"}, ids); diff != "" {
		t.Errorf("sorted order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a", in[0].OrderID, "input must not be reordered")
}

func TestSortOrdersEmpty(t *testing.T) {
	assert.Empty(t, SortOrders(nil))
}

func TestOrderDecode(t *testing.T) {
	raw := `{
		"_id": "665f",
		"orderCode": "BD-104",
		"orderStatus": "Pending",
		"orderType": "Delivery",
		"totalFoodPrice": {"$numberDecimal": "245.50"},
		"items": [{"foodName": "Tibs", "quantity": 2}, {"foodName": "Shiro", "quantity": 1}],
		"orderDate": "2025-03-02T10:15:00.000Z"
	}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, "665f", o.OrderID)
	assert.Equal(t, "BD-104", o.DisplayCode())
	assert.InDelta(t, 245.5, o.TotalFoodPrice.Float(), 0.001)
	assert.Equal(t, 3, o.ItemCount())
	assert.Equal(t, "Delivery", o.Kind())

	at, ok := o.PlacedAt()
	require.True(t, ok)
	assert.Equal(t, time.March, at.Month())
}

func TestOrderPlacedAtPrefersCreatedAt(t *testing.T) {
	o := Order{OrderDate: "2025-01-05T00:00:00Z", CreatedAt: "2024-12-31T23:00:00Z"}
	at, ok := o.PlacedAt()
	require.True(t, ok)
	assert.Equal(t, 2024, at.Year())

	_, ok = Order{CreatedAt: "not a date", OrderDate: "2025-01-05"}.PlacedAt()
	assert.False(t, ok, "an unparseable createdAt is not replaced by orderDate")

	_, ok = Order{}.PlacedAt()
	assert.False(t, ok)
}

func TestDisplayCodeFallsBackToID(t *testing.T) {
	assert.Equal(t, "o-1", Order{OrderID: "o-1"}.DisplayCode())
}
