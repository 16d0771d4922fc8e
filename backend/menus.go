package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"dashboard/model"
)

func (a *API) Menus(ctx context.Context, restaurantID string) ([]model.Menu, error) {
	var menus []model.Menu
	_, err := a.call(ctx, request{
		op:     "menus",
		method: http.MethodGet,
		path:   "/food-menus",
		query:  url.Values{"restaurantId": {restaurantID}},
	}, &menus)
	if err != nil {
		return nil, err
	}
	if menus == nil {
		menus = []model.Menu{}
	}
	return menus, nil
}

type MenuInput struct {
	RestaurantID string `json:"restaurantId,omitempty"`
	MenuType     string `json:"menuType"`
	Active       bool   `json:"active"`
}

func (a *API) CreateMenu(ctx context.Context, in MenuInput) (*model.Menu, error) {
	var m model.Menu
	if _, err := a.call(ctx, request{op: "create_menu", method: http.MethodPost, path: "/food-menus", body: in}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *API) UpdateMenu(ctx context.Context, id string, in MenuInput) (*model.Menu, error) {
	var m model.Menu
	if _, err := a.call(ctx, request{op: "update_menu", method: http.MethodPatch, path: "/food-menus/" + url.PathEscape(id), body: in}, &m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m = model.Menu{ID: id, MenuType: in.MenuType, Active: in.Active}
	}
	return &m, nil
}

func (a *API) FoodsByMenu(ctx context.Context, menuID string) ([]model.Food, error) {
	var data struct {
		Foods []model.Food `json:"foods"`
	}
	if _, err := a.call(ctx, request{op: "foods_by_menu", method: http.MethodGet, path: "/foods/by-menu/" + url.PathEscape(menuID)}, &data); err != nil {
		return nil, err
	}
	if data.Foods == nil {
		data.Foods = []model.Food{}
	}
	return data.Foods, nil
}

func (a *API) Food(ctx context.Context, id string) (*model.Food, error) {
	var f model.Food
	if _, err := a.call(ctx, request{op: "food", method: http.MethodGet, path: "/foods/" + url.PathEscape(id)}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// AllFoods is the public catalogue shown on the landing page.
func (a *API) AllFoods(ctx context.Context) ([]model.Food, error) {
	var foods []model.Food
	if _, err := a.call(ctx, request{op: "all_foods", method: http.MethodGet, path: "/foods"}, &foods); err != nil {
		return nil, err
	}
	if foods == nil {
		foods = []model.Food{}
	}
	return foods, nil
}

type FoodInput struct {
	FoodName           string
	Price              float64
	MenuID             string
	Ingredients        string
	Instructions       string
	CookingTimeMinutes int
	IsFeatured         bool
	Status             string
	Image              *Upload
}

func (in FoodInput) fields() [][2]string {
	f := [][2]string{
		{"foodName", in.FoodName},
		{"menuId", in.MenuID},
		{"ingredients", in.Ingredients},
		{"instructions", in.Instructions},
		{"isFeatured", strconv.FormatBool(in.IsFeatured)},
		{"status", in.Status},
	}
	if in.Price > 0 {
		f = append(f, [2]string{"price", strconv.FormatFloat(in.Price, 'f', -1, 64)})
	}
	if in.CookingTimeMinutes > 0 {
		f = append(f, [2]string{"cookingTimeMinutes", strconv.Itoa(in.CookingTimeMinutes)})
	}
	return f
}

func (a *API) CreateFood(ctx context.Context, in FoodInput) (*model.Food, error) {
	return a.sendFood(ctx, "create_food", http.MethodPost, "/foods", in)
}

func (a *API) UpdateFood(ctx context.Context, id string, in FoodInput) (*model.Food, error) {
	return a.sendFood(ctx, "update_food", http.MethodPatch, "/foods/"+url.PathEscape(id), in)
}

func (a *API) sendFood(ctx context.Context, op, method, path string, in FoodInput) (*model.Food, error) {
	form, err := newForm(in.fields(), in.Image)
	if err != nil {
		return nil, err
	}
	var f model.Food
	if _, err := a.call(ctx, request{op: op, method: method, path: path, form: form}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (a *API) DeleteFood(ctx context.Context, id string) error {
	_, err := a.call(ctx, request{op: "delete_food", method: http.MethodDelete, path: "/foods/" + url.PathEscape(id)}, nil)
	return err
}
