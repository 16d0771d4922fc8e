// Package state holds the dashboard's per-session application state. A Store
// has a single writer lock; readers get deep copies through Snapshot.
package state

import (
	"sync"
	"time"

	"dashboard/model"

	"github.com/google/uuid"
)

const DefaultNotificationCap = 10

type Snapshot struct {
	SessionID  string            `json:"sessionId"`
	User       *model.User       `json:"user"`
	Restaurant *model.Restaurant `json:"restaurant"`
	IsLoggedIn bool              `json:"isLoggedIn"`

	Notifications []model.Notification `json:"notifications"`
	NewOrderAlert bool                 `json:"newOrderAlert"`
	LatestOrderID string               `json:"latestOrderId"`

	Orders        []model.Order `json:"orders"`
	OrdersLoading bool          `json:"ordersLoading"`
	OrdersError   string        `json:"ordersError,omitempty"`

	Menus        []model.Menu            `json:"menus"`
	MenusLoading bool                    `json:"menusLoading"`
	MenusError   string                  `json:"menusError,omitempty"`
	FoodsByMenu  map[string][]model.Food `json:"foodsByMenu"`
	FoodsLoading bool                    `json:"foodsLoading"`
	FoodsError   string                  `json:"foodsError,omitempty"`

	Users              []model.User       `json:"users,omitempty"`
	UsersLoading       bool               `json:"usersLoading"`
	UsersError         string             `json:"usersError,omitempty"`
	Restaurants        []model.Restaurant `json:"restaurants,omitempty"`
	RestaurantsLoading bool               `json:"restaurantsLoading"`
	RestaurantsError   string             `json:"restaurantsError,omitempty"`

	Version uint64 `json:"version"`
}

// Role is the logged-in user's role, or "" when nobody is logged in.
func (s Snapshot) Role() model.Role {
	if s.User == nil || !s.IsLoggedIn {
		return ""
	}
	return s.User.Role
}

func (s Snapshot) RestaurantID() string {
	if s.Restaurant == nil {
		return ""
	}
	return s.Restaurant.ID
}

type Store struct {
	mu   sync.RWMutex
	data Snapshot
	cap  int
	now  func() time.Time

	issuedGen  uint64
	appliedGen uint64
}

type Option func(*Store)

func WithNotificationCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cap = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(sessionID string, opts ...Option) *Store {
	s := &Store{
		data: Snapshot{
			SessionID:   sessionID,
			FoodsByMenu: map[string][]model.Food{},
		},
		cap: DefaultNotificationCap,
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Version
}

// update runs fn under the write lock and bumps the version.
func (s *Store) update(fn func(d *Snapshot)) {
	s.mu.Lock()
	fn(&s.data)
	s.data.Version++
	s.mu.Unlock()
}

func (s *Store) SetUser(u *model.User) {
	s.update(func(d *Snapshot) {
		if u == nil {
			d.User, d.IsLoggedIn = nil, false
			return
		}
		c := *u
		d.User, d.IsLoggedIn = &c, true
	})
}

func (s *Store) ClearUser() {
	s.SetUser(nil)
}

func (s *Store) SetFirstLogin(first bool) {
	s.update(func(d *Snapshot) {
		if d.User != nil {
			d.User.FirstLogin = first
		}
	})
}

func (s *Store) SetRestaurant(r *model.Restaurant) {
	s.update(func(d *Snapshot) {
		if r == nil {
			d.Restaurant = nil
			return
		}
		c := cloneRestaurant(*r)
		d.Restaurant = &c
	})
}

// AddNotification appends n, assigning an ID and timestamp when missing, and
// drops the oldest entries beyond the cap.
func (s *Store) AddNotification(n model.Notification) model.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	s.update(func(d *Snapshot) {
		d.Notifications = append(d.Notifications, n)
		if over := len(d.Notifications) - s.cap; over > 0 {
			d.Notifications = append([]model.Notification(nil), d.Notifications[over:]...)
		}
	})
	return n
}

func (s *Store) RemoveNotification(id string) bool {
	removed := false
	s.update(func(d *Snapshot) {
		out := d.Notifications[:0]
		for _, n := range d.Notifications {
			if n.ID == id {
				removed = true
				continue
			}
			out = append(out, n)
		}
		d.Notifications = out
	})
	return removed
}

func (s *Store) ClearNotifications() {
	s.update(func(d *Snapshot) { d.Notifications = nil })
}

func (s *Store) SetNewOrderAlert(on bool) {
	s.update(func(d *Snapshot) { d.NewOrderAlert = on })
}

func (s *Store) SetLatestOrderID(id string) {
	s.update(func(d *Snapshot) { d.LatestOrderID = id })
}

// MarkLatestOrder records id as the latest order if it is non-empty and
// differs from the stored one. It reports whether it did, which is the
// signal to raise a new-order alert.
func (s *Store) MarkLatestOrder(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.LatestOrderID == id {
		return false
	}
	s.data.LatestOrderID = id
	s.data.NewOrderAlert = true
	s.data.Version++
	return true
}

// BeginOrdersFetch marks orders as loading and returns the generation the
// caller must commit with.
func (s *Store) BeginOrdersFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedGen++
	s.data.OrdersLoading = true
	s.data.OrdersError = ""
	s.data.Version++
	return s.issuedGen
}

// CommitOrders applies a fetch result unless a newer fetch already completed,
// in which case it returns false and leaves the state untouched.
func (s *Store) CommitOrders(gen uint64, orders []model.Order) bool {
	return s.finishOrders(gen, func(d *Snapshot) {
		d.Orders = cloneOrders(orders)
		d.OrdersError = ""
	})
}

func (s *Store) FailOrders(gen uint64, msg string) bool {
	return s.finishOrders(gen, func(d *Snapshot) {
		d.OrdersError = msg
	})
}

func (s *Store) finishOrders(gen uint64, apply func(d *Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.appliedGen {
		return false
	}
	s.appliedGen = gen
	apply(&s.data)
	if gen >= s.issuedGen {
		s.data.OrdersLoading = false
	}
	s.data.Version++
	return true
}

// ClearOrders empties the list and settles loading, for sessions that
// should not be polling.
func (s *Store) ClearOrders() {
	s.update(func(d *Snapshot) {
		d.Orders = nil
		d.OrdersLoading = false
	})
}

func (s *Store) UpdateOrderStatus(orderID string, status model.OrderStatus) bool {
	found := false
	s.update(func(d *Snapshot) {
		for i := range d.Orders {
			if d.Orders[i].OrderID == orderID {
				d.Orders[i].OrderStatus = status
				found = true
			}
		}
	})
	return found
}

func (s *Store) SetMenus(menus []model.Menu) {
	s.update(func(d *Snapshot) {
		d.Menus = append([]model.Menu(nil), menus...)
		d.MenusError = ""
	})
}

func (s *Store) AddMenu(m model.Menu) {
	s.update(func(d *Snapshot) { d.Menus = append(d.Menus, m) })
}

func (s *Store) UpdateMenu(m model.Menu) {
	s.update(func(d *Snapshot) {
		for i := range d.Menus {
			if d.Menus[i].ID == m.ID {
				d.Menus[i] = m
			}
		}
	})
}

func (s *Store) SetFoods(menuID string, foods []model.Food) {
	s.update(func(d *Snapshot) {
		d.FoodsByMenu[menuID] = append([]model.Food{}, foods...)
		d.FoodsError = ""
	})
}

// AddFood, UpdateFood and DeleteFood only touch menus whose foods are
// already cached; an uncached menu is fetched fresh on next view.
func (s *Store) AddFood(menuID string, f model.Food) {
	s.update(func(d *Snapshot) {
		if foods, ok := d.FoodsByMenu[menuID]; ok {
			d.FoodsByMenu[menuID] = append(foods, f)
		}
	})
}

func (s *Store) UpdateFood(menuID string, f model.Food) {
	s.update(func(d *Snapshot) {
		foods := d.FoodsByMenu[menuID]
		for i := range foods {
			if foods[i].ID == f.ID {
				foods[i] = f
			}
		}
	})
}

func (s *Store) DeleteFood(menuID, foodID string) {
	s.update(func(d *Snapshot) {
		foods, ok := d.FoodsByMenu[menuID]
		if !ok {
			return
		}
		out := make([]model.Food, 0, len(foods))
		for _, f := range foods {
			if f.ID != foodID {
				out = append(out, f)
			}
		}
		d.FoodsByMenu[menuID] = out
	})
}

func (s *Store) ClearMenusCache() {
	s.update(func(d *Snapshot) {
		d.Menus = nil
		d.FoodsByMenu = map[string][]model.Food{}
	})
}

func (s *Store) SetUsers(users []model.User) {
	s.update(func(d *Snapshot) {
		d.Users = append([]model.User(nil), users...)
		d.UsersError = ""
	})
}

func (s *Store) SetRestaurants(list []model.Restaurant) {
	s.update(func(d *Snapshot) {
		d.Restaurants = make([]model.Restaurant, len(list))
		for i, r := range list {
			d.Restaurants[i] = cloneRestaurant(r)
		}
		d.RestaurantsError = ""
	})
}

// MarkRestaurantActive flips the cached active flag and returns the previous
// value so an optimistic update can be rolled back.
func (s *Store) MarkRestaurantActive(id string, active bool) (previous bool, found bool) {
	s.update(func(d *Snapshot) {
		for i := range d.Restaurants {
			if d.Restaurants[i].ID == id {
				previous, found = d.Restaurants[i].IsActive, true
				d.Restaurants[i].IsActive = active
			}
		}
	})
	return previous, found
}

func (s *Store) ClearAdminData() {
	s.update(func(d *Snapshot) {
		d.Users, d.UsersError = nil, ""
		d.Restaurants, d.RestaurantsError = nil, ""
	})
}

// Reset wipes everything but the session ID, as on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.data.Version + 1
	s.data = Snapshot{SessionID: s.data.SessionID, FoodsByMenu: map[string][]model.Food{}, Version: v}
	s.appliedGen = s.issuedGen
}
