package controller

import (
	"context"
	"net/http"
	"strings"

	"dashboard/auth"
	"dashboard/backend"
	"dashboard/model"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
)

type menuRequest struct {
	MenuType string `json:"menuType"`
	Active   *bool  `json:"active"`
}

// restaurantID writes a 400 when the manager has no restaurant in state.
func restaurantID(c *gin.Context, sess *auth.Session) (string, bool) {
	id := sess.Store.Snapshot().RestaurantID()
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No restaurant assigned to this manager."})
		return "", false
	}
	return id, true
}

func (h *Handler) ListMenus(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	rid, ok := restaurantID(c, sess)
	if !ok {
		return
	}

	menus, err := sess.Store.LoadMenus(c.Request.Context(), forceParam(c), func(ctx context.Context) ([]model.Menu, error) {
		return sess.API.Menus(ctx, rid)
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to load menus")
		return
	}
	respondOK(c, "", menus)
}

func (h *Handler) CreateMenu(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	rid, ok := restaurantID(c, sess)
	if !ok {
		return
	}

	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MenuType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Menu type is required"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	menu, err := sess.API.CreateMenu(c.Request.Context(), backend.MenuInput{
		RestaurantID: rid,
		MenuType:     strings.TrimSpace(req.MenuType),
		Active:       active,
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to create menu")
		return
	}
	sess.Store.AddMenu(*menu)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Menu created successfully", "data": menu})
}

func (h *Handler) UpdateMenu(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}

	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MenuType) == "" || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Menu type and active flag are required"})
		return
	}

	menu, err := sess.API.UpdateMenu(c.Request.Context(), c.Param("id"), backend.MenuInput{
		MenuType: strings.TrimSpace(req.MenuType),
		Active:   *req.Active,
	})
	if err != nil {
		utils.RespondError(c, err, "Failed to update menu")
		return
	}
	if menu.ID == "" {
		menu.ID = c.Param("id")
	}
	sess.Store.UpdateMenu(*menu)
	respondOK(c, "Menu updated successfully", menu)
}
