package model

type Food struct {
	ID                 string `json:"_id"`
	FoodName           string `json:"foodName"`
	Price              Amount `json:"price"`
	Ingredients        string `json:"ingredients,omitempty"`
	Instructions       string `json:"instructions,omitempty"`
	CookingTimeMinutes int    `json:"cookingTimeMinutes,omitempty"`
	ImageCover         string `json:"imageCover,omitempty"`
	IsFeatured         bool   `json:"isFeatured"`
	Status             string `json:"status,omitempty"`
}
