package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusPreparing  OrderStatus = "Preparing"
	StatusCooked     OrderStatus = "Cooked"
	StatusDelivering OrderStatus = "Delivering"
	StatusCompleted  OrderStatus = "Completed"
	StatusCancelled  OrderStatus = "Cancelled"
)

// unrankedStatus is the rank given to any status missing from statusRank.
const unrankedStatus = 99

var statusRank = map[string]int{
	"pending":    1,
	"preparing":  2,
	"cooked":     3,
	"delivering": 5,
}

// Rank is the board priority of a status, lower first. Case is ignored.
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[strings.ToLower(strings.TrimSpace(string(s)))]; ok {
		return r
	}
	return unrankedStatus
}

func (s OrderStatus) Is(other OrderStatus) bool {
	return strings.EqualFold(string(s), string(other))
}

type OrderItem struct {
	FoodID   string `json:"foodId,omitempty"`
	FoodName string `json:"foodName"`
	Quantity int    `json:"quantity"`
	Price    Amount `json:"price,omitempty"`
}

type Order struct {
	OrderID        string      `json:"orderId"`
	OrderCode      string      `json:"orderCode,omitempty"`
	OrderStatus    OrderStatus `json:"orderStatus"`
	OrderType      string      `json:"orderType,omitempty"`
	Type           string      `json:"type,omitempty"`
	TotalFoodPrice Amount      `json:"totalFoodPrice"`
	Items          []OrderItem `json:"items,omitempty"`
	Description    string      `json:"description,omitempty"`
	UserID         string      `json:"userId,omitempty"`
	UserName       string      `json:"userName,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	CustomerID     string      `json:"customerId,omitempty"`
	CustomerEmail  string      `json:"customerEmail,omitempty"`
	OrderDate      string      `json:"orderDate,omitempty"`
	CreatedAt      string      `json:"createdAt,omitempty"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var aux struct {
		plain
		ObjectID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = Order(aux.plain)
	if o.OrderID == "" {
		o.OrderID = aux.ObjectID
	}
	return nil
}

// DisplayCode is what the alert text shows: the short order code when the
// backend sent one, the order ID otherwise.
func (o Order) DisplayCode() string {
	if o.OrderCode != "" {
		return o.OrderCode
	}
	return o.OrderID
}

// Kind returns orderType, falling back to the older type field.
func (o Order) Kind() string {
	if o.OrderType != "" {
		return o.OrderType
	}
	return o.Type
}

// PlacedAt parses createdAt, or orderDate when createdAt is empty. ok is
// false when the chosen value is not a usable timestamp.
func (o Order) PlacedAt() (time.Time, bool) {
	raw := o.CreatedAt
	if raw == "" {
		raw = o.OrderDate
	}
	return ParseTime(raw)
}

func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// SortOrders returns a copy of orders ordered by status rank. Orders sharing a
// rank keep their input order.
func SortOrders(orders []Order) []Order {
	out := make([]Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderStatus.Rank() < out[j].OrderStatus.Rank()
	})
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
