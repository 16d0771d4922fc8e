package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dashboard/auth"
	"dashboard/backend"
	"dashboard/model"
	"dashboard/notify"
	"dashboard/state"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type env struct {
	t      *testing.T
	mux    *http.ServeMux
	store  *state.Store
	hub    *notify.Hub
	router *gin.Engine

	mu    sync.Mutex
	calls map[string]int
}

func newEnv(t *testing.T, role model.Role) *env {
	t.Helper()
	e := &env{t: t, mux: http.NewServeMux(), calls: map[string]int{}, hub: notify.NewHub()}
	srv := httptest.NewServer(e.mux)
	t.Cleanup(srv.Close)
	t.Cleanup(e.hub.Close)

	client := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	e.store = state.NewStore("s1")
	e.store.SetUser(&model.User{ID: "u1", FirstName: "Meron", Role: role})
	if role == model.RoleManager {
		e.store.SetRestaurant(&model.Restaurant{ID: "r1", Name: "Lucy Burger", IsActive: true})
	}

	h := New(Deps{Client: client, Hub: e.hub, Now: func() time.Time { return fixedNow }})
	sess := &auth.Session{ID: "s1", Role: role, Store: e.store, API: client.WithToken("backend-token")}

	e.router = gin.New()
	e.router.GET("/landing/foods", h.LandingFoods)
	api := e.router.Group("/api", func(c *gin.Context) {
		auth.WithSession(c, sess)
		c.Next()
	})
	api.GET("/dashboard", h.Dashboard)
	api.GET("/notifications", h.Notifications)
	api.DELETE("/notifications/:id", h.DeleteNotification)
	api.GET("/alerts/stream", h.AlertStream)
	api.GET("/orders", h.ListOrders)
	api.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	api.GET("/orders/export", h.ExportOrders)
	api.GET("/menus", h.ListMenus)
	api.POST("/foods", h.CreateFood)
	api.POST("/foods/import", h.ImportFoods)
	api.PATCH("/restaurant/location", h.UpdateLocation)
	api.POST("/balance/withdraw", h.Withdraw)
	api.PATCH("/admin/restaurants/:id/status", h.SetRestaurantStatus)
	api.GET("/admin/restaurants/:id/orders", h.RestaurantOrders)
	api.GET("/admin/overview", h.Overview)
	api.GET("/admin/users", h.ListUsers)
	api.GET("/admin/locations", h.Locations)
	return e
}

// handle registers a marketplace endpoint that answers with body.
func (e *env) handle(pattern string, status int, body any) {
	e.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.calls[pattern]++
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (e *env) callCount(pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[pattern]
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Fields  []string        `json:"fields"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Skipped []struct {
		Row    int    `json:"row"`
		Reason string `json:"reason"`
	} `json:"skipped"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func success(data any) map[string]any {
	return map[string]any{"status": "success", "data": data}
}

func seedOrders(s *state.Store, orders ...model.Order) {
	gen := s.BeginOrdersFetch()
	s.CommitOrders(gen, orders)
}

func TestListOrdersBoard(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	seedOrders(e.store,
		model.Order{OrderID: "o1", OrderCode: "AB-1", OrderStatus: model.StatusPending, OrderDate: "2025-03-01T10:00:00Z"},
		model.Order{OrderID: "o2", OrderCode: "AB-2", OrderStatus: model.StatusCompleted, OrderDate: "2025-03-02T10:00:00Z"},
		model.Order{OrderID: "o3", OrderCode: "AB-3", OrderStatus: model.StatusCooked, OrderDate: "2025-03-03T10:00:00Z"},
		model.Order{OrderID: "o4", OrderCode: "XY-4", OrderStatus: model.StatusPreparing, OrderDate: "2025-03-04T10:00:00Z"},
	)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/orders?search=ab", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var orders []model.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, "o3", orders[0].OrderID)
	assert.Equal(t, "o1", orders[1].OrderID)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/orders?status=completed", nil))
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "o2", orders[0].OrderID)
}

func TestUpdateOrderStatus(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	seedOrders(e.store, model.Order{OrderID: "o1", OrderStatus: model.StatusPending})
	e.handle("/api/v1/orders/o1/status", http.StatusOK, map[string]any{"status": "success"})

	w := e.doJSON(http.MethodPatch, "/api/orders/o1/status", map[string]string{"status": "Preparing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusPreparing, e.store.Snapshot().Orders[0].OrderStatus)

	w = e.doJSON(http.MethodPatch, "/api/orders/o1/status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatusBackendRefusal(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	seedOrders(e.store, model.Order{OrderID: "o1", OrderStatus: model.StatusPending})
	e.handle("/api/v1/orders/o1/status", http.StatusBadRequest, map[string]any{"status": "fail", "message": "Invalid status transition"})

	w := e.doJSON(http.MethodPatch, "/api/orders/o1/status", map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status transition", decode(t, w).Error)
	assert.Equal(t, model.StatusPending, e.store.Snapshot().Orders[0].OrderStatus)
}

func TestListMenusUsesCacheUnlessForced(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	e.handle("/api/v1/food-menus", http.StatusOK, success([]map[string]any{{"_id": "m1", "menuType": "Breakfast", "active": true}}))

	for _, path := range []string{"/api/menus", "/api/menus", "/api/menus?force=1"} {
		w := e.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, 2, e.callCount("/api/v1/food-menus"))
	assert.Len(t, e.store.Snapshot().Menus, 1)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateFoodValidation(t *testing.T) {
	e := newEnv(t, model.RoleManager)

	body, ct := multipartBody(t, map[string]string{"foodName": "Firfir"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/foods", body)
	req.Header.Set("Content-Type", ct)
	w := e.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"price", "menuId"}, decode(t, w).Fields)

	body, ct = multipartBody(t, map[string]string{"foodName": "Firfir", "price": "120", "menuId": "m1"}, "imageCover", "photo.gif", []byte("GIF89a"))
	req = httptest.NewRequest(http.MethodPost, "/api/foods", body)
	req.Header.Set("Content-Type", ct)
	w = e.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error, "only JPG/JPEG/PNG")
}

func TestImportFoods(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	e.store.SetFoods("m1", nil)
	e.handle("/api/v1/foods", http.StatusCreated, success(map[string]any{"_id": "f-new", "foodName": "Tibs"}))

	xl := excelize.NewFile()
	rows := [][]any{
		{"menuId", "price", "name", "description", "cookingTime"},
		{"m1", 150, "Tibs", "Beef", 20},
		{"m1", "free", "Shiro"},
		{"m1", 90, "Kitfo"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, xl.SetSheetRow("Sheet1", cell, &row))
	}
	var file bytes.Buffer
	require.NoError(t, xl.Write(&file))
	require.NoError(t, xl.Close())

	body, ct := multipartBody(t, nil, "file", "foods.xlsx", file.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/foods/import", body)
	req.Header.Set("Content-Type", ct)
	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode(t, w)
	assert.Equal(t, "Bulk food upload successful", r.Message)
	assert.Equal(t, 2, r.Count)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, 3, r.Skipped[0].Row)
	assert.Equal(t, 2, e.callCount("/api/v1/foods"))
	assert.Len(t, e.store.Snapshot().FoodsByMenu["m1"], 2)
}

func TestImportFoodsRequiresFile(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	body, ct := multipartBody(t, map[string]string{"x": "y"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/foods/import", body)
	req.Header.Set("Content-Type", ct)
	w := e.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Excel file is required", decode(t, w).Error)
}

func TestUpdateLocationValidatesCoordinates(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	e.handle("/api/v1/restaurants/location/r1", http.StatusOK, map[string]any{"status": "success"})

	w := e.doJSON(http.MethodPatch, "/api/restaurant/location", map[string]any{"latitude": 95, "longitude": 38.7})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"latitude"}, decode(t, w).Fields)

	w = e.doJSON(http.MethodPatch, "/api/restaurant/location", map[string]any{"address": "Bole", "latitude": 9.01, "longitude": 38.76})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	loc := e.store.Snapshot().Restaurant.Location
	require.NotNil(t, loc)
	assert.Equal(t, []float64{38.76, 9.01}, loc.Coordinates)
}

func TestWithdrawRejectsBadAmount(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	w := e.doJSON(http.MethodPost, "/api/balance/withdraw", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportOrders(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	seedOrders(e.store, model.Order{OrderID: "o1", OrderCode: "AB-1", OrderStatus: model.StatusPending, TotalFoodPrice: 240})

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/orders/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "orders.xlsx")

	xl, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer xl.Close()
	rows, err := xl.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AB-1", rows[1][0])
}

func TestSetRestaurantStatusRollsBack(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	e.store.SetRestaurants([]model.Restaurant{{ID: "r9", Name: "Kaldis", IsActive: true}})
	e.handle("/api/v1/restaurants/r9", http.StatusInternalServerError, map[string]any{"status": "error", "message": "boom"})

	w := e.doJSON(http.MethodPatch, "/api/admin/restaurants/r9/status", map[string]any{"active": false})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.True(t, e.store.Snapshot().Restaurants[0].IsActive)
}

func TestSetRestaurantStatus(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	e.store.SetRestaurants([]model.Restaurant{{ID: "r9", Name: "Kaldis", IsActive: true}})
	e.handle("/api/v1/restaurants/r9", http.StatusOK, map[string]any{"status": "success"})

	w := e.doJSON(http.MethodPatch, "/api/admin/restaurants/r9/status", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, e.store.Snapshot().Restaurants[0].IsActive)
}

func TestRestaurantOrdersForAdmin(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	e.handle("/api/v1/orders/restaurant/r7/orders", http.StatusOK, success([]map[string]any{
		{"_id": "o1", "orderStatus": "Completed"},
		{"_id": "o2", "orderStatus": "Pending"},
		{"_id": "o3", "orderStatus": "Cooked"},
	}))
	e.handle("/api/v1/orders/restaurant/r8/orders", http.StatusInternalServerError, map[string]any{"status": "error", "message": "database down"})

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/admin/restaurants/r7/orders", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var orders []model.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &orders))
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"o2", "o3", "o1"}, []string{orders[0].OrderID, orders[1].OrderID, orders[2].OrderID})
	assert.Equal(t, 1, e.callCount("/api/v1/orders/restaurant/r7/orders"))

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/admin/restaurants/r8/orders", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestOverview(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	e.handle("/api/v1/users", http.StatusOK, success(map[string]any{"users": []map[string]any{
		{"_id": "a", "role": "Admin", "createdAt": "2025-03-02T00:00:00Z"},
		{"_id": "b", "role": "Customer", "createdAt": "2024-12-01T00:00:00Z"},
	}}))
	e.handle("/api/v1/restaurants/admin/list", http.StatusOK, success([]map[string]any{{"_id": "r1"}, {"_id": "r2"}}))
	e.handle("/api/v1/orders/restaurants/order-stats", http.StatusOK, success([]map[string]any{
		{"restaurantId": "r1", "totalOrders": 7, "byType": map[string]int{"Delivery": 4, "DineIn": 3}},
	}))

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/admin/overview", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		UserStats struct {
			Total             int `json:"total"`
			NewUsersThisMonth int `json:"newUsersThisMonth"`
		} `json:"userStats"`
		OrderTotals struct {
			Total    int `json:"total"`
			Delivery int `json:"delivery"`
		} `json:"orderTotals"`
		RestaurantsCount int `json:"restaurantsCount"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 2, data.UserStats.Total)
	assert.Equal(t, 1, data.UserStats.NewUsersThisMonth)
	assert.Equal(t, 7, data.OrderTotals.Total)
	assert.Equal(t, 4, data.OrderTotals.Delivery)
	assert.Equal(t, 2, data.RestaurantsCount)
}

func TestListUsersFilters(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	e.store.SetUsers([]model.User{
		{ID: "1", FirstName: "Abebe", Phone: "911", Role: model.RoleManager},
		{ID: "2", FirstName: "Sara", Phone: "922", Role: model.RoleCustomer},
		{ID: "3", FirstName: "Abel", Phone: "933", Role: model.RoleCustomer},
	})

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/admin/users?search=ab&role=customer", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var users []model.User
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "3", users[0].ID)
}

func TestLocationsDisabled(t *testing.T) {
	e := newEnv(t, model.RoleAdmin)
	w := e.do(httptest.NewRequest(http.MethodGet, "/api/admin/locations", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardByRole(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	w := e.do(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &d))
	assert.Equal(t, "manager", d.Type)

	e = newEnv(t, model.RoleCustomer)
	w = e.do(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotifications(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	n := e.store.AddNotification(model.Notification{Type: model.NotificationNewOrder, Title: "New Order"})
	e.store.AddNotification(model.Notification{Type: model.NotificationInfo, Title: "Hello"})

	w := e.do(httptest.NewRequest(http.MethodDelete, "/api/notifications/"+n.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(httptest.NewRequest(http.MethodDelete, "/api/notifications/"+n.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	var list []model.Notification
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Hello", list[0].Title)
}

func TestLandingFoodsIsPublic(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	e.handle("/api/v1/foods", http.StatusOK, success([]map[string]any{{"_id": "f1", "foodName": "Tibs", "price": 150}}))

	w := e.do(httptest.NewRequest(http.MethodGet, "/landing/foods", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var foods []model.Food
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &foods))
	require.Len(t, foods, 1)
	assert.Equal(t, "Tibs", foods[0].FoodName)
}

// streamRecorder adds the CloseNotify that gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestAlertStream(t *testing.T) {
	e := newEnv(t, model.RoleManager)
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.router.ServeHTTP(rec, req)
	}()
	require.Eventually(t, func() bool { return e.hub.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.hub.Send(context.Background(), notify.Alert{SessionID: "s1", OrderCode: "AB-9", Title: "New Order", Message: "Order AB-9 received"}))
	e.hub.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "event:alert"), body)
	assert.Contains(t, body, `"orderCode":"AB-9"`)
}
