package model

import "encoding/json"

type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type Restaurant struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	License             string          `json:"license,omitempty"`
	Description         string          `json:"description,omitempty"`
	CuisineTypes        []string        `json:"cuisineTypes,omitempty"`
	ImageCover          string          `json:"imageCover,omitempty"`
	IsActive            bool            `json:"isActive"`
	IsOpenNow           bool            `json:"isOpenNow"`
	IsDeliveryAvailable bool            `json:"isDeliveryAvailable"`
	Location            *GeoPoint       `json:"location,omitempty"`
	Manager             json.RawMessage `json:"manager,omitempty"`
}

func (r *Restaurant) UnmarshalJSON(data []byte) error {
	type plain Restaurant
	var aux struct {
		plain
		ObjectID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Restaurant(aux.plain)
	if r.ID == "" {
		r.ID = aux.ObjectID
	}
	return nil
}

// RestaurantOrderStats is one row of the platform-wide order statistics.
type RestaurantOrderStats struct {
	RestaurantID   string         `json:"restaurantId"`
	RestaurantName string         `json:"restaurantName"`
	TotalOrders    int            `json:"totalOrders"`
	ByStatus       map[string]int `json:"byStatus"`
	ByType         map[string]int `json:"byType"`
}
