package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dashboard/backend"
	"dashboard/model"
	"dashboard/utils"
	"dashboard/view"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	historyLimit     = 50
	streamKeepAlive  = 25 * time.Second
	maxHistoryLimit  = 200
	streamEventAlert = "alert"
)

// Dashboard returns the role's dashboard built from session state.
func (h *Handler) Dashboard(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	d, err := view.For(sess.Store.Snapshot(), h.now())
	switch {
	case errors.Is(err, view.ErrNotLoggedIn):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Please log in"})
		return
	case errors.Is(err, view.ErrNoDashboard):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Access denied. Admins and restaurant managers only."})
		return
	case err != nil:
		utils.RespondError(c, err, "Failed to load dashboard")
		return
	}
	respondOK(c, "", d)
}

func (h *Handler) Notifications(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	list := sess.Store.Snapshot().Notifications
	if list == nil {
		list = []model.Notification{}
	}
	respondOK(c, "", list)
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if !sess.Store.RemoveNotification(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ClearNotifications(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	sess.Store.ClearNotifications()
	sess.Store.SetNewOrderAlert(false)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// NotificationHistory lists persisted alerts, which outlive the capped list
// kept in session state.
func (h *Handler) NotificationHistory(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if h.history == nil {
		respondOK(c, "", []model.SessionNotification{})
		return
	}
	limit := historyLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxHistoryLimit)
		}
	}
	list, err := h.history.Recent(c.Request.Context(), sess.ID, limit)
	if err != nil {
		utils.RespondError(c, err, "Failed to load notifications")
		return
	}
	respondOK(c, "", list)
}

// AlertStream pushes new-order alerts of the session as server-sent events
// until the client goes away.
func (h *Handler) AlertStream(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Live alerts are disabled"})
		return
	}
	alerts, cancel := h.hub.Subscribe(sess.ID)
	defer cancel()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	h.log.Debug("alert stream opened", zap.String("session_id", sess.ID))

	c.Stream(func(io.Writer) bool {
		select {
		case a, open := <-alerts:
			if !open {
				return false
			}
			c.SSEvent(streamEventAlert, a)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", h.now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
	h.log.Debug("alert stream closed", zap.String("session_id", sess.ID))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	upd := backend.ProfileUpdate{
		FirstName: strings.TrimSpace(c.PostForm("firstName")),
		LastName:  strings.TrimSpace(c.PostForm("lastName")),
		Email:     strings.TrimSpace(c.PostForm("email")),
	}
	photo, err := imageUpload(c, "profilePicture")
	if err != nil {
		badUpload(c, err)
		return
	}
	upd.Photo = photo

	u, err := sess.API.UpdateMe(c.Request.Context(), upd)
	if err != nil {
		utils.RespondError(c, err, "Failed to update profile")
		return
	}
	merged := mergeUser(sess.Store.Snapshot().User, upd, u)
	sess.Store.SetUser(&merged)
	respondOK(c, "Profile updated successfully", merged)
}

func (h *Handler) DeleteProfile(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if err := h.auth.DeleteAccount(c.Request.Context(), sess); err != nil {
		utils.RespondError(c, err, "Failed to delete account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Account deleted"})
}

// mergeUser keeps the role and first-login flag from the session, since the
// profile endpoint may not echo them.
func mergeUser(cur *model.User, upd backend.ProfileUpdate, returned *model.User) model.User {
	var out model.User
	if cur != nil {
		out = *cur
	}
	if returned != nil && returned.ID != "" {
		role, first := out.Role, out.FirstLogin
		out = *returned
		if out.Role == "" {
			out.Role = role
		}
		out.FirstLogin = first
		return out
	}
	if upd.FirstName != "" {
		out.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		out.LastName = upd.LastName
	}
	if upd.Email != "" {
		out.Email = upd.Email
	}
	return out
}
