package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"dashboard/model"
)

// ManagerRestaurant returns the restaurant run by the calling manager, or nil
// when none is assigned.
func (a *API) ManagerRestaurant(ctx context.Context) (*model.Restaurant, error) {
	var data struct {
		Restaurants []model.Restaurant `json:"restaurants"`
	}
	if _, err := a.call(ctx, request{op: "manager_restaurant", method: http.MethodGet, path: "/restaurants/by-manager"}, &data); err != nil {
		return nil, err
	}
	if len(data.Restaurants) == 0 {
		return nil, nil
	}
	r := data.Restaurants[0]
	return &r, nil
}

func (a *API) AdminRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var list []model.Restaurant
	if _, err := a.call(ctx, request{op: "admin_restaurants", method: http.MethodGet, path: "/restaurants/admin/list"}, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Restaurant{}
	}
	return list, nil
}

type RestaurantInput struct {
	Name                string   `json:"name"`
	License             string   `json:"license"`
	ManagerPhone        string   `json:"managerPhone"`
	CuisineTypes        []string `json:"cuisineTypes"`
	Description         string   `json:"description"`
	IsDeliveryAvailable bool     `json:"isDeliveryAvailable"`
}

func (a *API) CreateRestaurant(ctx context.Context, in RestaurantInput) (*model.Restaurant, error) {
	var out model.Restaurant
	if _, err := a.call(ctx, request{op: "create_restaurant", method: http.MethodPost, path: "/restaurants", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRestaurantActive activates with POST and deactivates with DELETE on the
// same resource, which is how the marketplace API models the switch.
func (a *API) SetRestaurantActive(ctx context.Context, id string, active bool) error {
	method := http.MethodDelete
	if active {
		method = http.MethodPost
	}
	_, err := a.call(ctx, request{op: "set_restaurant_active", method: method, path: "/restaurants/" + url.PathEscape(id)}, nil)
	return err
}

func (a *API) AssignManager(ctx context.Context, restaurantID, phone string) error {
	_, err := a.call(ctx, request{
		op:     "assign_manager",
		method: http.MethodPost,
		path:   "/restaurants/assign-manager",
		body:   map[string]string{"phone": phone, "restaurantId": restaurantID},
	}, nil)
	return err
}

// RestaurantUpdate holds the editable fields of a manager's restaurant. Nil
// pointers are not sent.
type RestaurantUpdate struct {
	Description         string
	Address             string
	IsDeliveryAvailable *bool
	IsOpenNow           *bool
	Image               *Upload
}

func (a *API) UpdateRestaurant(ctx context.Context, id string, upd RestaurantUpdate) (*model.Restaurant, error) {
	form, err := newForm([][2]string{
		{"description", upd.Description},
		{"address", upd.Address},
		{"isDeliveryAvailable", formatBool(upd.IsDeliveryAvailable)},
		{"isOpenNow", formatBool(upd.IsOpenNow)},
	}, upd.Image)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if _, err := a.call(ctx, request{op: "update_restaurant", method: http.MethodPatch, path: "/restaurants/" + url.PathEscape(id), form: form}, &raw); err != nil {
		return nil, err
	}
	return decodeRestaurant(raw)
}

// decodeRestaurant accepts both {"restaurant": {...}} and a bare restaurant.
func decodeRestaurant(raw json.RawMessage) (*model.Restaurant, error) {
	var wrapped struct {
		Restaurant *model.Restaurant `json:"restaurant"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Restaurant != nil {
		return wrapped.Restaurant, nil
	}
	var r model.Restaurant
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

type LocationInput struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (a *API) UpdateRestaurantLocation(ctx context.Context, id string, in LocationInput) error {
	_, err := a.call(ctx, request{
		op:     "update_restaurant_location",
		method: http.MethodPatch,
		path:   "/restaurants/location/" + url.PathEscape(id),
		body:   in,
	}, nil)
	return err
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
