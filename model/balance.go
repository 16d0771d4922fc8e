package model

import (
	"encoding/json"
	"strings"
	"time"
)

type Balance struct {
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
}

type Transaction struct {
	ID          string `json:"_id,omitempty"`
	Type        string `json:"type"`
	Amount      Amount `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Date        string `json:"date,omitempty"`
}

func (t Transaction) When() (time.Time, bool) {
	if ts, ok := ParseTime(t.CreatedAt); ok {
		return ts, true
	}
	return ParseTime(t.Date)
}

type BalanceHistory struct {
	RequesterType string        `json:"requesterType,omitempty"`
	TotalBalance  Amount        `json:"totalBalance"`
	Transactions  []Transaction `json:"transactions"`
}

type RequesterType string

const (
	RequesterRestaurant RequesterType = "Restaurant"
	RequesterDelivery   RequesterType = "Delivery"
)

type Withdrawal struct {
	ID           string          `json:"_id"`
	Amount       Amount          `json:"amount"`
	NetAmount    Amount          `json:"netAmount"`
	Fee          Amount          `json:"fee"`
	Currency     string          `json:"currency,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"createdAt"`
	RestaurantID json.RawMessage `json:"restaurantId,omitempty"`
	DeliveryID   json.RawMessage `json:"deliveryId,omitempty"`
	Delivery     json.RawMessage `json:"delivery,omitempty"`
}

// Requester resolves who asked for the payout. The backend sends either a
// plain ID or a populated document for restaurantId, deliveryId and delivery.
func (w Withdrawal) Requester() (id, name string) {
	for _, raw := range []json.RawMessage{w.RestaurantID, w.DeliveryID, w.Delivery} {
		if id, name = refIDName(raw); id != "" {
			return id, name
		}
	}
	return "", ""
}

// RequesterFor only looks at the reference matching the requester type.
func (w Withdrawal) RequesterFor(rt RequesterType) (id, name string) {
	refs := []json.RawMessage{w.DeliveryID, w.Delivery}
	if strings.EqualFold(string(rt), string(RequesterRestaurant)) {
		refs = []json.RawMessage{w.RestaurantID}
	}
	for _, raw := range refs {
		if id, name = refIDName(raw); id != "" {
			return id, name
		}
	}
	return "", ""
}

func refIDName(raw json.RawMessage) (string, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ""
	}
	var doc struct {
		ID        string `json:"_id"`
		AltID     string `json:"id"`
		Name      string `json:"name"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", ""
	}
	id := doc.ID
	if id == "" {
		id = doc.AltID
	}
	name := doc.Name
	if name == "" {
		name = strings.TrimSpace(doc.FirstName + " " + doc.LastName)
	}
	return id, name
}
