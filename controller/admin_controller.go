package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dashboard/analytics"
	"dashboard/auth"
	"dashboard/backend"
	"dashboard/locations"
	"dashboard/model"
	"dashboard/push"
	"dashboard/sheets"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const topRestaurantsLimit = 5

func allUsers(sess *auth.Session) func(context.Context) ([]model.User, error) {
	return func(ctx context.Context) ([]model.User, error) {
		return sess.API.ListUsers(ctx, "")
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	users, err := sess.Store.LoadUsers(c.Request.Context(), forceParam(c), allUsers(sess))
	if err != nil {
		utils.RespondError(c, err, "Failed to load users")
		return
	}
	var role model.Role
	if r := strings.TrimSpace(c.Query("role")); r != "" {
		role = model.ParseRole(r)
	}
	respondOK(c, "", analytics.FilterUsers(users, c.Query("search"), role))
}

func (h *Handler) GetUser(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	u, err := sess.API.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err, "User not found")
		return
	}
	respondOK(c, "", u)
}

// userInput reads the multipart user form. Creating requires the name,
// phone and role; updates send whatever was filled in.
func userInput(c *gin.Context, create bool) (backend.UserInput, error) {
	in := backend.UserInput{
		FirstName:      strings.TrimSpace(c.PostForm("firstName")),
		LastName:       strings.TrimSpace(c.PostForm("lastName")),
		Phone:          model.SanitizePhone(c.PostForm("phone")),
		DeliveryMethod: strings.TrimSpace(c.PostForm("deliveryMethod")),
		FCNNumber:      strings.TrimSpace(c.PostForm("fcnNumber")),
	}
	if r := strings.TrimSpace(c.PostForm("role")); r != "" {
		in.Role = model.ParseRole(r)
	}
	if create {
		var missing []string
		for _, f := range [][2]string{
			{"firstName", in.FirstName},
			{"lastName", in.LastName},
			{"phone", in.Phone},
			{"role", string(in.Role)},
		} {
			if f[1] == "" {
				missing = append(missing, f[0])
			}
		}
		if len(missing) > 0 {
			return in, &utils.ValidationError{Fields: missing}
		}
	}
	photo, err := imageUpload(c, "profilePicture")
	if err != nil {
		return in, utils.NewHTTPError(http.StatusBadRequest, err.Error(), err)
	}
	in.Photo = photo
	return in, nil
}

func (h *Handler) CreateUser(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	in, err := userInput(c, true)
	if err != nil {
		utils.RespondError(c, err, "Invalid user data")
		return
	}
	u, err := sess.API.CreateUser(c.Request.Context(), in)
	if err != nil {
		utils.RespondError(c, err, "Failed to create user")
		return
	}
	if users := sess.Store.Snapshot().Users; users != nil {
		sess.Store.SetUsers(append(users, *u))
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User created successfully", "data": u})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	in, err := userInput(c, false)
	if err != nil {
		utils.RespondError(c, err, "Invalid user data")
		return
	}
	id := c.Param("id")
	u, err := sess.API.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		utils.RespondError(c, err, "Failed to update user")
		return
	}
	if u.ID == "" {
		u.ID = id
	}
	users := sess.Store.Snapshot().Users
	for i := range users {
		if users[i].ID == id {
			users[i] = *u
		}
	}
	if users != nil {
		sess.Store.SetUsers(users)
	}
	respondOK(c, "User updated successfully", u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := sess.API.DeleteUser(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err, "Failed to delete user")
		return
	}
	if users := sess.Store.Snapshot().Users; users != nil {
		kept := users[:0]
		for _, u := range users {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		sess.Store.SetUsers(kept)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted successfully"})
}

func (h *Handler) ListRestaurants(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	list, err := sess.Store.LoadRestaurants(c.Request.Context(), forceParam(c), sess.API.AdminRestaurants)
	if err != nil {
		utils.RespondError(c, err, "Failed to load restaurants.")
		return
	}
	respondOK(c, "", list)
}

func (h *Handler) CreateRestaurant(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var in backend.RestaurantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid restaurant data"})
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.License = strings.TrimSpace(in.License)
	in.ManagerPhone = model.SanitizePhone(in.ManagerPhone)
	var missing []string
	for _, f := range [][2]string{{"name", in.Name}, {"license", in.License}, {"managerPhone", in.ManagerPhone}} {
		if f[1] == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		utils.RespondError(c, &utils.ValidationError{Fields: missing}, "Invalid restaurant data")
		return
	}

	r, err := sess.API.CreateRestaurant(c.Request.Context(), in)
	if err != nil {
		utils.RespondError(c, err, "Failed to create restaurant")
		return
	}
	if list := sess.Store.Snapshot().Restaurants; list != nil {
		sess.Store.SetRestaurants(append(list, *r))
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Restaurant created successfully", "data": r})
}

// SetRestaurantStatus flips the cached flag first and puts it back if the
// backend refuses.
func (h *Handler) SetRestaurantStatus(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "active is required"})
		return
	}
	id := c.Param("id")

	prev, found := sess.Store.MarkRestaurantActive(id, *req.Active)
	if err := sess.API.SetRestaurantActive(c.Request.Context(), id, *req.Active); err != nil {
		if found {
			sess.Store.MarkRestaurantActive(id, prev)
		}
		h.log.Warn("restaurant status change failed", zap.String("restaurant_id", id), zap.Error(err))
		utils.RespondError(c, err, "Failed to update restaurant status")
		return
	}
	respondOK(c, "Restaurant status updated", gin.H{"id": id, "isActive": *req.Active})
}

func (h *Handler) AssignManager(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || model.SanitizePhone(req.Phone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Manager phone is required"})
		return
	}

	ctx := c.Request.Context()
	if err := sess.API.AssignManager(ctx, c.Param("id"), model.SanitizePhone(req.Phone)); err != nil {
		utils.RespondError(c, err, "Failed to assign manager")
		return
	}
	list, err := sess.Store.LoadRestaurants(ctx, true, sess.API.AdminRestaurants)
	if err != nil {
		// The assignment went through; only the refetch failed.
		h.log.Warn("reloading restaurants failed", zap.String("session_id", sess.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Manager assigned successfully"})
		return
	}
	respondOK(c, "Manager assigned successfully", list)
}

// RestaurantOrders lists any restaurant's orders in board rank order.
func (h *Handler) RestaurantOrders(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	orders, err := sess.API.RestaurantOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err, "Failed to load orders")
		return
	}
	respondOK(c, "", model.SortOrders(orders))
}

func (h *Handler) OrderStats(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	stats, err := sess.API.OrderStats(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load order statistics")
		return
	}
	respondOK(c, "", stats)
}

// Overview loads users, restaurants and order statistics concurrently for
// the admin cards.
func (h *Handler) Overview(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	force := forceParam(c)

	var (
		users       []model.User
		restaurants []model.Restaurant
		stats       []model.RestaurantOrderStats
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		users, err = sess.Store.LoadUsers(ctx, force, allUsers(sess))
		return err
	})
	g.Go(func() (err error) {
		restaurants, err = sess.Store.LoadRestaurants(ctx, force, sess.API.AdminRestaurants)
		return err
	})
	g.Go(func() (err error) {
		stats, err = sess.API.OrderStats(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		utils.RespondError(c, err, "Failed to load overview")
		return
	}

	respondOK(c, "", gin.H{
		"userStats":        analytics.SummarizeUsers(users, h.now()),
		"orderTotals":      analytics.SumOrderStats(stats),
		"restaurantsCount": len(restaurants),
	})
}

func (h *Handler) TopRestaurants(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	n := topRestaurantsLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive number"})
			return
		}
		n = v
	}
	stats, err := sess.API.OrderStats(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load order statistics")
		return
	}
	respondOK(c, "", analytics.TopRestaurants(stats, n))
}

func requesterType(c *gin.Context) model.RequesterType {
	if strings.EqualFold(c.Query("type"), string(model.RequesterDelivery)) {
		return model.RequesterDelivery
	}
	return model.RequesterRestaurant
}

func (h *Handler) Withdrawals(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	rt := requesterType(c)
	list, err := sess.API.WithdrawHistory(c.Request.Context(), rt)
	if err != nil {
		utils.RespondError(c, err, "Failed to load withdrawals")
		return
	}
	respondOK(c, "", analytics.GroupWithdrawals(list, rt))
}

func (h *Handler) ExportWithdrawals(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	rt := requesterType(c)
	list, err := sess.API.WithdrawHistory(c.Request.Context(), rt)
	if err != nil {
		utils.RespondError(c, err, "Failed to load withdrawals")
		return
	}
	xl, err := sheets.WithdrawalsWorkbook(analytics.GroupWithdrawals(list, rt))
	if err != nil {
		utils.RespondError(c, err, "Failed to build export")
		return
	}
	defer xl.Close()
	attachment(c, "withdrawals-"+strings.ToLower(string(rt))+".xlsx", func(w io.Writer) error { return xl.Write(w) })
}

type trackedPerson struct {
	model.DeliveryPerson
	Icon string `json:"icon"`
}

func (h *Handler) tracker(c *gin.Context, sess *auth.Session) (*locations.Tracker, bool) {
	if h.trackers == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Location tracking is disabled"})
		return nil, false
	}
	t, found := h.trackers.Get(sess.ID)
	if !found {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Location tracking is not running"})
		return nil, false
	}
	return t, true
}

func (h *Handler) Locations(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	t, ok := h.tracker(c, sess)
	if !ok {
		return
	}

	people := t.Snapshot(c.Query("search"))
	out := make([]trackedPerson, len(people))
	for i, p := range people {
		out[i] = trackedPerson{DeliveryPerson: p, Icon: locations.VehicleIcon(p.Location.DeliveryMethod)}
	}
	body := gin.H{"people": out, "status": t.Status()}
	if b, ok := t.Bounds(); ok {
		body["bounds"] = b
	}
	respondOK(c, "", body)
}

func (h *Handler) RequestLocations(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	t, ok := h.tracker(c, sess)
	if !ok {
		return
	}
	if err := t.RequestAll(); err != nil {
		if errors.Is(err, push.ErrNotConnected) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Live updates are not connected"})
			return
		}
		utils.RespondError(c, err, "Failed to request locations")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Location refresh requested"})
}
