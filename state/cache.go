package state

import (
	"context"

	"dashboard/model"
)

// The Load* helpers serve from cache unless force is set or nothing is
// cached yet. A failed fetch records its message in the matching error
// field and returns the error; the cache is left as it was.

func (s *Store) LoadMenus(ctx context.Context, force bool, fetch func(context.Context) ([]model.Menu, error)) ([]model.Menu, error) {
	s.mu.RLock()
	cached := s.data.Menus
	s.mu.RUnlock()
	if !force && len(cached) > 0 {
		return append([]model.Menu(nil), cached...), nil
	}

	s.update(func(d *Snapshot) { d.MenusLoading, d.MenusError = true, "" })
	menus, err := fetch(ctx)
	if err != nil {
		s.update(func(d *Snapshot) { d.MenusLoading, d.MenusError = false, err.Error() })
		return nil, err
	}
	s.update(func(d *Snapshot) {
		d.Menus = append([]model.Menu(nil), menus...)
		d.MenusLoading, d.MenusError = false, ""
	})
	return menus, nil
}

func (s *Store) LoadFoods(ctx context.Context, menuID string, force bool, fetch func(context.Context, string) ([]model.Food, error)) ([]model.Food, error) {
	s.mu.RLock()
	cached, ok := s.data.FoodsByMenu[menuID]
	s.mu.RUnlock()
	if !force && ok {
		return append([]model.Food{}, cached...), nil
	}

	s.update(func(d *Snapshot) { d.FoodsLoading, d.FoodsError = true, "" })
	foods, err := fetch(ctx, menuID)
	if err != nil {
		s.update(func(d *Snapshot) { d.FoodsLoading, d.FoodsError = false, err.Error() })
		return nil, err
	}
	s.update(func(d *Snapshot) {
		d.FoodsByMenu[menuID] = append([]model.Food{}, foods...)
		d.FoodsLoading, d.FoodsError = false, ""
	})
	return foods, nil
}

func (s *Store) LoadUsers(ctx context.Context, force bool, fetch func(context.Context) ([]model.User, error)) ([]model.User, error) {
	s.mu.RLock()
	cached := s.data.Users
	s.mu.RUnlock()
	if !force && len(cached) > 0 {
		return append([]model.User(nil), cached...), nil
	}

	s.update(func(d *Snapshot) { d.UsersLoading, d.UsersError = true, "" })
	users, err := fetch(ctx)
	if err != nil {
		s.update(func(d *Snapshot) { d.UsersLoading, d.UsersError = false, err.Error() })
		return nil, err
	}
	s.update(func(d *Snapshot) {
		d.Users = append([]model.User(nil), users...)
		d.UsersLoading, d.UsersError = false, ""
	})
	return users, nil
}

func (s *Store) LoadRestaurants(ctx context.Context, force bool, fetch func(context.Context) ([]model.Restaurant, error)) ([]model.Restaurant, error) {
	s.mu.RLock()
	n := len(s.data.Restaurants)
	s.mu.RUnlock()
	if !force && n > 0 {
		return s.Snapshot().Restaurants, nil
	}

	s.update(func(d *Snapshot) { d.RestaurantsLoading, d.RestaurantsError = true, "" })
	list, err := fetch(ctx)
	if err != nil {
		s.update(func(d *Snapshot) { d.RestaurantsLoading, d.RestaurantsError = false, err.Error() })
		return nil, err
	}
	s.SetRestaurants(list)
	s.update(func(d *Snapshot) { d.RestaurantsLoading = false })
	return list, nil
}
