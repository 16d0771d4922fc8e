// Package view turns a session snapshot into the payload of the dashboard
// matching the user's role. The role switch happens once, in For.
package view

import (
	"errors"
	"fmt"
	"time"

	"dashboard/analytics"
	"dashboard/model"
	"dashboard/state"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoDashboard = errors.New("role has no dashboard")
)

// Dashboard is implemented by AdminDashboard and ManagerDashboard only.
type Dashboard interface {
	Kind() string
	dashboard()
}

type Common struct {
	User          model.User           `json:"user"`
	Notifications []model.Notification `json:"notifications"`
}

type ManagerDashboard struct {
	Common
	Type          string                  `json:"type"`
	Restaurant    *model.Restaurant       `json:"restaurant"`
	FirstLogin    bool                    `json:"firstLogin"`
	NewOrderAlert bool                    `json:"newOrderAlert"`
	Orders        []model.Order           `json:"orders"`
	OrdersLoading bool                    `json:"ordersLoading"`
	OrdersError   string                  `json:"ordersError,omitempty"`
	Menus         []model.Menu            `json:"menus"`
	MenusError    string                  `json:"menusError,omitempty"`
	Analytics     analytics.Summary       `json:"analytics"`
	Recent        []model.Order           `json:"recentOrders"`
	FoodsByMenu   map[string][]model.Food `json:"-"`
}

func (ManagerDashboard) Kind() string { return "manager" }
func (ManagerDashboard) dashboard()   {}

type AdminDashboard struct {
	Common
	Type             string              `json:"type"`
	UserStats        analytics.UserStats `json:"userStats"`
	RestaurantsCount int                 `json:"restaurantsCount"`
	Restaurants      []model.Restaurant  `json:"restaurants"`
	UsersError       string              `json:"usersError,omitempty"`
	RestaurantsError string              `json:"restaurantsError,omitempty"`
}

func (AdminDashboard) Kind() string { return "admin" }
func (AdminDashboard) dashboard()   {}

const recentOrdersLimit = 5

// For dispatches on the snapshot's role.
func For(s state.Snapshot, now time.Time) (Dashboard, error) {
	switch role := s.Role(); role {
	case "":
		return nil, ErrNotLoggedIn
	case model.RoleAdmin:
		return newAdmin(s, now), nil
	case model.RoleManager:
		return newManager(s), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoDashboard, role)
	}
}

func newManager(s state.Snapshot) ManagerDashboard {
	sorted := model.SortOrders(s.Orders)
	recent := sorted
	if len(recent) > recentOrdersLimit {
		recent = recent[:recentOrdersLimit]
	}
	return ManagerDashboard{
		Common:        common(s),
		Type:          "manager",
		Restaurant:    s.Restaurant,
		FirstLogin:    s.User.FirstLogin,
		NewOrderAlert: s.NewOrderAlert,
		Orders:        sorted,
		OrdersLoading: s.OrdersLoading,
		OrdersError:   s.OrdersError,
		Menus:         nonNil(s.Menus),
		MenusError:    s.MenusError,
		Analytics:     analytics.Summarize(s.Orders, time.Local),
		Recent:        recent,
		FoodsByMenu:   s.FoodsByMenu,
	}
}

func newAdmin(s state.Snapshot, now time.Time) AdminDashboard {
	return AdminDashboard{
		Common:           common(s),
		Type:             "admin",
		UserStats:        analytics.SummarizeUsers(s.Users, now),
		RestaurantsCount: len(s.Restaurants),
		Restaurants:      nonNil(s.Restaurants),
		UsersError:       s.UsersError,
		RestaurantsError: s.RestaurantsError,
	}
}

func common(s state.Snapshot) Common {
	return Common{User: *s.User, Notifications: nonNil(s.Notifications)}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
