package state

import (
	"encoding/json"
	"fmt"

	"dashboard/model"
)

// persisted is the subset of a Snapshot that survives a reload. Loading
// flags and error strings always start fresh.
type persisted struct {
	User          *model.User             `json:"user"`
	Restaurant    *model.Restaurant       `json:"restaurant"`
	IsLoggedIn    bool                    `json:"isLoggedIn"`
	Notifications []model.Notification    `json:"notifications"`
	NewOrderAlert bool                    `json:"newOrderAlert"`
	LatestOrderID string                  `json:"latestOrderId"`
	Orders        []model.Order           `json:"orders"`
	Menus         []model.Menu            `json:"menus"`
	FoodsByMenu   map[string][]model.Food `json:"foodsByMenu"`
	Users         []model.User            `json:"users"`
	Restaurants   []model.Restaurant      `json:"restaurants"`
}

func (s *Store) Marshal() ([]byte, error) {
	snap := s.Snapshot()
	return json.Marshal(persisted{
		User:          snap.User,
		Restaurant:    snap.Restaurant,
		IsLoggedIn:    snap.IsLoggedIn,
		Notifications: snap.Notifications,
		NewOrderAlert: snap.NewOrderAlert,
		LatestOrderID: snap.LatestOrderID,
		Orders:        snap.Orders,
		Menus:         snap.Menus,
		FoodsByMenu:   snap.FoodsByMenu,
		Users:         snap.Users,
		Restaurants:   snap.Restaurants,
	})
}

// Restore replaces the persisted fields with those encoded in data.
func (s *Store) Restore(data []byte) error {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding session state: %w", err)
	}
	if p.FoodsByMenu == nil {
		p.FoodsByMenu = map[string][]model.Food{}
	}
	if over := len(p.Notifications) - s.cap; over > 0 {
		p.Notifications = p.Notifications[over:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.User = p.User
	s.data.Restaurant = p.Restaurant
	s.data.IsLoggedIn = p.IsLoggedIn && p.User != nil
	s.data.Notifications = p.Notifications
	s.data.NewOrderAlert = p.NewOrderAlert
	s.data.LatestOrderID = p.LatestOrderID
	s.data.Orders = p.Orders
	s.data.Menus = p.Menus
	s.data.FoodsByMenu = p.FoodsByMenu
	s.data.Users = p.Users
	s.data.Restaurants = p.Restaurants
	s.data.Version++
	return nil
}
