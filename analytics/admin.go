package analytics

import (
	"sort"
	"strings"
	"time"

	"dashboard/model"
)

type RoleCounts struct {
	Admin    int `json:"admin"`
	Manager  int `json:"manager"`
	Delivery int `json:"delivery"`
	Customer int `json:"customer"`
	Other    int `json:"other"`
}

type UserStats struct {
	Roles             RoleCounts `json:"roles"`
	Total             int        `json:"total"`
	NewUsersThisMonth int        `json:"newUsersThisMonth"`
}

// SummarizeUsers counts users per role by substring, and users created
// between the start of now's month and now.
func SummarizeUsers(users []model.User, now time.Time) UserStats {
	st := UserStats{Total: len(users)}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, u := range users {
		role := strings.ToLower(string(u.Role))
		switch {
		case strings.Contains(role, "admin"):
			st.Roles.Admin++
		case strings.Contains(role, "manager"):
			st.Roles.Manager++
		case strings.Contains(role, "delivery"):
			st.Roles.Delivery++
		case strings.Contains(role, "customer"):
			st.Roles.Customer++
		default:
			st.Roles.Other++
		}

		if created, ok := model.ParseTime(u.CreatedAt); ok && !created.Before(monthStart) && !created.After(now) {
			st.NewUsersThisMonth++
		}
	}
	return st
}

type OrderTotals struct {
	Total    int `json:"total"`
	Delivery int `json:"delivery"`
	Takeaway int `json:"takeaway"`
	DineIn   int `json:"dineIn"`
}

func SumOrderStats(stats []model.RestaurantOrderStats) OrderTotals {
	var t OrderTotals
	for _, s := range stats {
		t.Total += s.TotalOrders
		t.Delivery += s.ByType["Delivery"]
		t.Takeaway += s.ByType["Takeaway"]
		t.DineIn += s.ByType["DineIn"]
	}
	return t
}

type RankedRestaurant struct {
	model.RestaurantOrderStats
	AdjustedTotal int `json:"adjustedTotal"`
}

// TopRestaurants ranks restaurants by total orders minus cancelled ones.
func TopRestaurants(stats []model.RestaurantOrderStats, n int) []RankedRestaurant {
	out := make([]RankedRestaurant, 0, len(stats))
	for _, s := range stats {
		adj := s.TotalOrders - s.ByStatus["Cancelled"]
		if adj < 0 {
			adj = 0
		}
		if s.RestaurantName == "" {
			s.RestaurantName = "Unknown Restaurant"
		}
		out = append(out, RankedRestaurant{RestaurantOrderStats: s, AdjustedTotal: adj})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AdjustedTotal > out[j].AdjustedTotal })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type WithdrawalGroup struct {
	RequesterID   string             `json:"userId"`
	RequesterName string             `json:"name,omitempty"`
	Latest        model.Withdrawal   `json:"latest"`
	Rest          []model.Withdrawal `json:"rest"`
}

// GroupWithdrawals groups payouts per requester, newest first within each
// group and across groups by their latest entry. Entries without a
// requester are dropped.
func GroupWithdrawals(list []model.Withdrawal, rt model.RequesterType) []WithdrawalGroup {
	type acc struct {
		name  string
		items []model.Withdrawal
	}
	groups := map[string]*acc{}
	var order []string
	for _, w := range list {
		id, name := w.RequesterFor(rt)
		if id == "" {
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &acc{}
			groups[id] = g
			order = append(order, id)
		}
		if g.name == "" {
			g.name = name
		}
		g.items = append(g.items, w)
	}

	out := make([]WithdrawalGroup, 0, len(groups))
	for _, id := range order {
		g := groups[id]
		sort.SliceStable(g.items, func(i, j int) bool {
			return createdAt(g.items[i]).After(createdAt(g.items[j]))
		})
		out = append(out, WithdrawalGroup{
			RequesterID:   id,
			RequesterName: g.name,
			Latest:        g.items[0],
			Rest:          append([]model.Withdrawal{}, g.items[1:]...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdAt(out[i].Latest).After(createdAt(out[j].Latest))
	})
	return out
}

func createdAt(w model.Withdrawal) time.Time {
	t, _ := model.ParseTime(w.CreatedAt)
	return t
}

// SortTransactions returns transactions newest first by createdAt or date.
func SortTransactions(txs []model.Transaction) []model.Transaction {
	out := append([]model.Transaction{}, txs...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i].When()
		tj, _ := out[j].When()
		return ti.After(tj)
	})
	return out
}

// FilterUsers matches the search against full name, ID and phone, and keeps
// only the given role when one is set.
func FilterUsers(users []model.User, search string, role model.Role) []model.User {
	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if role != "" && u.Role != role {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName), q) &&
			!strings.Contains(strings.ToLower(u.ID), q) &&
			!strings.Contains(strings.ToLower(u.Phone), q) {
			continue
		}
		out = append(out, u)
	}
	return out
}
