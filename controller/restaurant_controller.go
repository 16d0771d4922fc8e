package controller

import (
	"net/http"
	"strconv"
	"strings"

	"dashboard/backend"
	"dashboard/model"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) MyRestaurant(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if !forceParam(c) {
		if r := sess.Store.Snapshot().Restaurant; r != nil {
			respondOK(c, "", r)
			return
		}
	}

	r, err := sess.API.ManagerRestaurant(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load restaurants.")
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No restaurant assigned to this manager."})
		return
	}
	sess.Store.SetRestaurant(r)
	respondOK(c, "", r)
}

func (h *Handler) ToggleOpen(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	current := sess.Store.Snapshot().Restaurant
	if current == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No restaurant assigned to this manager."})
		return
	}

	var req struct {
		IsOpenNow *bool `json:"isOpenNow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsOpenNow == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "isOpenNow is required"})
		return
	}

	upd := backend.RestaurantUpdate{IsOpenNow: req.IsOpenNow}
	r, err := sess.API.UpdateRestaurant(c.Request.Context(), current.ID, upd)
	if err != nil {
		utils.RespondError(c, err, "Failed to update restaurant")
		return
	}
	merged := mergeRestaurant(*current, upd, r)
	sess.Store.SetRestaurant(&merged)
	h.log.Info("restaurant open state changed", zap.String("restaurant_id", current.ID), zap.Bool("open", merged.IsOpenNow))
	respondOK(c, "Restaurant updated successfully", merged)
}

func (h *Handler) UpdateRestaurant(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	current := sess.Store.Snapshot().Restaurant
	if current == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No restaurant assigned to this manager."})
		return
	}

	upd := backend.RestaurantUpdate{
		Description: strings.TrimSpace(c.PostForm("description")),
		Address:     strings.TrimSpace(c.PostForm("address")),
	}
	for field, dst := range map[string]**bool{
		"isDeliveryAvailable": &upd.IsDeliveryAvailable,
		"isOpenNow":           &upd.IsOpenNow,
	} {
		raw := c.PostForm(field)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid value for " + field})
			return
		}
		*dst = &v
	}
	image, err := imageUpload(c, "imageCover")
	if err != nil {
		badUpload(c, err)
		return
	}
	upd.Image = image

	r, err := sess.API.UpdateRestaurant(c.Request.Context(), current.ID, upd)
	if err != nil {
		utils.RespondError(c, err, "Failed to update restaurant")
		return
	}
	merged := mergeRestaurant(*current, upd, r)
	sess.Store.SetRestaurant(&merged)
	respondOK(c, "Restaurant updated successfully", merged)
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	rid, ok := restaurantID(c, sess)
	if !ok {
		return
	}

	var req struct {
		Address   string   `json:"address"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid location"})
		return
	}
	var invalid []string
	if req.Latitude == nil || *req.Latitude < -90 || *req.Latitude > 90 {
		invalid = append(invalid, "latitude")
	}
	if req.Longitude == nil || *req.Longitude < -180 || *req.Longitude > 180 {
		invalid = append(invalid, "longitude")
	}
	if len(invalid) > 0 {
		utils.RespondError(c, &utils.ValidationError{Fields: invalid}, "Invalid location")
		return
	}

	in := backend.LocationInput{Address: strings.TrimSpace(req.Address), Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := sess.API.UpdateRestaurantLocation(c.Request.Context(), rid, in); err != nil {
		utils.RespondError(c, err, "Failed to update location")
		return
	}
	if r := sess.Store.Snapshot().Restaurant; r != nil {
		// GeoJSON order is longitude first.
		r.Location = &model.GeoPoint{Type: "Point", Coordinates: []float64{in.Longitude, in.Latitude}}
		sess.Store.SetRestaurant(r)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Location updated successfully"})
}

// AcknowledgeFirstLogin clears the first-login prompt for this session.
func (h *Handler) AcknowledgeFirstLogin(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	sess.Store.SetFirstLogin(false)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// mergeRestaurant prefers what the backend returned and falls back to the
// cached record with the submitted changes applied.
func mergeRestaurant(cur model.Restaurant, upd backend.RestaurantUpdate, returned *model.Restaurant) model.Restaurant {
	if returned != nil && returned.ID != "" {
		return *returned
	}
	if upd.Description != "" {
		cur.Description = upd.Description
	}
	if upd.IsDeliveryAvailable != nil {
		cur.IsDeliveryAvailable = *upd.IsDeliveryAvailable
	}
	if upd.IsOpenNow != nil {
		cur.IsOpenNow = *upd.IsOpenNow
	}
	return cur
}
