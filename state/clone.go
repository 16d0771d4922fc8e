package state

import (
	"encoding/json"

	"dashboard/model"
)

func (s Snapshot) clone() Snapshot {
	c := s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Restaurant != nil {
		r := cloneRestaurant(*s.Restaurant)
		c.Restaurant = &r
	}
	c.Notifications = append([]model.Notification(nil), s.Notifications...)
	c.Orders = cloneOrders(s.Orders)
	c.Menus = append([]model.Menu(nil), s.Menus...)
	c.FoodsByMenu = make(map[string][]model.Food, len(s.FoodsByMenu))
	for k, v := range s.FoodsByMenu {
		c.FoodsByMenu[k] = append([]model.Food{}, v...)
	}
	c.Users = append([]model.User(nil), s.Users...)
	if s.Restaurants != nil {
		c.Restaurants = make([]model.Restaurant, len(s.Restaurants))
		for i, r := range s.Restaurants {
			c.Restaurants[i] = cloneRestaurant(r)
		}
	}
	return c
}

func cloneRestaurant(r model.Restaurant) model.Restaurant {
	r.CuisineTypes = append([]string(nil), r.CuisineTypes...)
	if r.Location != nil {
		loc := *r.Location
		loc.Coordinates = append([]float64(nil), loc.Coordinates...)
		r.Location = &loc
	}
	if r.Manager != nil {
		r.Manager = append(json.RawMessage(nil), r.Manager...)
	}
	return r
}

func cloneOrders(orders []model.Order) []model.Order {
	if orders == nil {
		return nil
	}
	out := make([]model.Order, len(orders))
	for i, o := range orders {
		o.Items = append([]model.OrderItem(nil), o.Items...)
		out[i] = o
	}
	return out
}
