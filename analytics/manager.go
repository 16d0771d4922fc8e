// Package analytics computes the dashboard's derived figures from backend
// payloads. Everything here is pure and works on copies.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"dashboard/model"
)

type OrderTypeCounts struct {
	DineIn   int `json:"dineIn"`
	Delivery int `json:"delivery"`
	TakeAway int `json:"takeAway"`
}

type MonthStat struct {
	Key       string  `json:"key"`
	Month     string  `json:"month"`
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
}

type Summary struct {
	TotalRevenue    float64         `json:"totalRevenue"`
	OrderCount      int             `json:"orderCount"`
	CustomerCount   int             `json:"customerCount"`
	RevenueGrowth   float64         `json:"revenueGrowth"`
	OrderGrowth     float64         `json:"orderGrowth"`
	CustomerGrowth  float64         `json:"customerGrowth"`
	OrderTypeCounts OrderTypeCounts `json:"orderTypeCounts"`
	Monthly         []MonthStat     `json:"monthlyData"`
}

// Summarize builds the manager analytics page. Revenue, customers and the
// monthly series only count orders with a usable date; the order count and
// type breakdown count every order. Months are bucketed in loc.
func Summarize(orders []model.Order, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{OrderCount: len(orders), Monthly: []MonthStat{}}
	if len(orders) == 0 {
		return s
	}

	type bucket struct {
		stat      MonthStat
		start     time.Time
		customers map[string]struct{}
	}
	buckets := map[string]*bucket{}
	customers := map[string]struct{}{}

	for _, o := range orders {
		at, ok := o.PlacedAt()
		if !ok {
			continue
		}
		at = at.In(loc)
		price := o.TotalFoodPrice.Float()
		s.TotalRevenue += price

		key := at.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				stat:      MonthStat{Key: key, Month: at.Format("Jan")},
				start:     time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, loc),
				customers: map[string]struct{}{},
			}
			buckets[key] = b
		}
		b.stat.Revenue += price
		b.stat.Orders++

		if id := CustomerKey(o); id != "" {
			customers[id] = struct{}{}
			b.customers[id] = struct{}{}
		}
	}

	s.CustomerCount = len(customers)
	if s.CustomerCount == 0 {
		s.CustomerCount = s.OrderCount
	}
	s.OrderTypeCounts = CountOrderTypes(orders)

	sorted := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		b.stat.Customers = len(b.customers)
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })
	for _, b := range sorted {
		s.Monthly = append(s.Monthly, b.stat)
	}

	if n := len(s.Monthly); n >= 2 {
		last, prev := s.Monthly[n-1], s.Monthly[n-2]
		s.RevenueGrowth = growth(last.Revenue, prev.Revenue)
		s.OrderGrowth = growth(float64(last.Orders), float64(prev.Orders))
		s.CustomerGrowth = growth(float64(last.Customers), float64(prev.Customers))
	}
	return s
}

// CustomerKey identifies the customer behind an order: customerId, then
// customerEmail, then userId.
func CustomerKey(o model.Order) string {
	switch {
	case o.CustomerID != "":
		return o.CustomerID
	case o.CustomerEmail != "":
		return o.CustomerEmail
	default:
		return o.UserID
	}
}

func CountOrderTypes(orders []model.Order) OrderTypeCounts {
	var c OrderTypeCounts
	for _, o := range orders {
		kind := strings.ToLower(o.Kind())
		switch {
		case strings.Contains(kind, "dine"):
			c.DineIn++
		case strings.Contains(kind, "deliver"):
			c.Delivery++
		case strings.Contains(kind, "take"):
			c.TakeAway++
		}
	}
	return c
}

// growth is the percentage change from prev to last rounded to one decimal.
// A zero base yields zero.
func growth(last, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	// Halves round up, so -12.25 becomes -12.2.
	return math.Floor((last-prev)/prev*1000+0.5) / 10
}

var boardStatuses = map[string]bool{
	"pending":   true,
	"cooked":    true,
	"canceled":  true,
	"preparing": true,
}

// BoardOrders is the orders board: statuses pending, cooked, canceled and
// preparing, matching the order code search, newest order date first.
func BoardOrders(orders []model.Order, query string) []model.Order {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if !boardStatuses[strings.ToLower(string(o.OrderStatus))] {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(o.OrderCode), q) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := model.ParseTime(out[i].OrderDate)
		tj, _ := model.ParseTime(out[j].OrderDate)
		return ti.After(tj)
	})
	return out
}
