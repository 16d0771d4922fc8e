package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"dashboard/analytics"
	"dashboard/model"
	"dashboard/poller"
	"dashboard/sheets"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListOrders serves the orders board. Without a status filter it shows the
// board statuses newest first; with one it shows that status in rank order.
func (h *Handler) ListOrders(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	snap := sess.Store.Snapshot()
	search := c.Query("search")

	var orders []model.Order
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q := strings.ToLower(strings.TrimSpace(search))
		for _, o := range model.SortOrders(snap.Orders) {
			if !o.OrderStatus.Is(model.OrderStatus(status)) {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(o.OrderCode), q) {
				continue
			}
			orders = append(orders, o)
		}
		if orders == nil {
			orders = []model.Order{}
		}
	} else {
		orders = analytics.BoardOrders(snap.Orders, search)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"loading": snap.OrdersLoading,
		"error":   snap.OrdersError,
	})
}

func (h *Handler) RefreshOrders(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	p, found := h.pollers.Get(sess.ID)
	if !found {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Orders are not being tracked for this session"})
		return
	}

	err := p.Refresh(c.Request.Context())
	if errors.Is(err, poller.ErrThrottled) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Orders were refreshed moments ago. Please wait."})
		return
	}
	if err != nil {
		utils.RespondError(c, err, "Failed to load orders.")
		return
	}
	respondOK(c, "", model.SortOrders(sess.Store.Snapshot().Orders))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Status is required"})
		return
	}
	id := c.Param("id")
	status := model.OrderStatus(strings.TrimSpace(req.Status))

	if err := sess.API.UpdateOrderStatus(c.Request.Context(), id, status); err != nil {
		utils.RespondError(c, err, "Failed to update order status")
		return
	}
	sess.Store.UpdateOrderStatus(id, status)
	h.log.Info("order status updated", zap.String("session_id", sess.ID), zap.String("order_id", id), zap.String("status", string(status)))
	respondOK(c, "Order status updated", gin.H{"orderId": id, "orderStatus": status})
}

func (h *Handler) VerifyPickup(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Verification code is required"})
		return
	}

	msg, err := sess.API.VerifyPickup(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Code))
	if err != nil {
		utils.RespondError(c, err, "Pickup verification failed")
		return
	}
	if msg == "" {
		msg = "Pickup verified"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) ExportOrders(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	xl, err := sheets.OrdersWorkbook(model.SortOrders(sess.Store.Snapshot().Orders))
	if err != nil {
		utils.RespondError(c, err, "Failed to build export")
		return
	}
	defer xl.Close()
	attachment(c, "orders.xlsx", func(w io.Writer) error { return xl.Write(w) })
}
