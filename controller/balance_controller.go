package controller

import (
	"net/http"
	"time"

	"dashboard/analytics"
	"dashboard/model"
	"dashboard/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) Balance(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	b, err := sess.API.Balance(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load balance")
		return
	}
	respondOK(c, "", b)
}

// BalanceHistory returns the transactions newest first.
func (h *Handler) BalanceHistory(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	hist, err := sess.API.BalanceHistory(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "Failed to load balance history")
		return
	}
	hist.Transactions = analytics.SortTransactions(hist.Transactions)
	respondOK(c, "", hist)
}

func (h *Handler) Withdraw(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Enter a valid amount"})
		return
	}

	msg, err := sess.API.Withdraw(c.Request.Context(), req.Amount)
	if err != nil {
		utils.RespondError(c, err, "Withdrawal request failed")
		return
	}
	if msg == "" {
		msg = "Withdrawal request submitted"
	}
	h.log.Info("withdrawal requested", zap.String("session_id", sess.ID), zap.Float64("amount", req.Amount))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) MyWithdrawals(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	list, err := sess.API.WithdrawHistory(c.Request.Context(), model.RequesterRestaurant)
	if err != nil {
		utils.RespondError(c, err, "Failed to load withdrawals")
		return
	}
	respondOK(c, "", list)
}

// Analytics summarises the cached orders; it never calls the backend.
func (h *Handler) Analytics(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	respondOK(c, "", analytics.Summarize(sess.Store.Snapshot().Orders, time.Local))
}
