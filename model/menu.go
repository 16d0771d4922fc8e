package model

type Menu struct {
	ID          string `json:"_id"`
	MenuType    string `json:"menuType"`
	Active      bool   `json:"active"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}
