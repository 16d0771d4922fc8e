package backend

import (
	"context"
	"net/http"
	"net/url"

	"dashboard/model"
)

// RestaurantOrders returns the raw, unsorted order list of a restaurant.
func (a *API) RestaurantOrders(ctx context.Context, restaurantID string) ([]model.Order, error) {
	var orders []model.Order
	_, err := a.call(ctx, request{
		op:     "restaurant_orders",
		method: http.MethodGet,
		path:   "/orders/restaurant/" + url.PathEscape(restaurantID) + "/orders",
	}, &orders)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func (a *API) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	_, err := a.call(ctx, request{
		op:     "update_order_status",
		method: http.MethodPatch,
		path:   "/orders/" + url.PathEscape(orderID) + "/status",
		body:   map[string]string{"status": string(status)},
	}, nil)
	return err
}

// VerifyPickup confirms the code a delivery person shows at the counter.
func (a *API) VerifyPickup(ctx context.Context, orderID, code string) (string, error) {
	env, err := a.call(ctx, request{
		op:     "verify_pickup",
		method: http.MethodPost,
		path:   "/orders/verify-restaurant-pickup",
		body:   map[string]string{"orderId": orderID, "pickupVerificationCode": code},
	}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (a *API) OrderStats(ctx context.Context) ([]model.RestaurantOrderStats, error) {
	var stats []model.RestaurantOrderStats
	if _, err := a.call(ctx, request{op: "order_stats", method: http.MethodGet, path: "/orders/restaurants/order-stats"}, &stats); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []model.RestaurantOrderStats{}
	}
	return stats, nil
}
