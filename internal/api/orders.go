package api

import (
	"net/http"

	"forest-fashion/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation. A replayed idempotency key answers
// 200 with the original order instead of 201.
func (h *Handler) createOrder(c *gin.Context) {
	var req service.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, created, err := h.svc.Orders.Submit(c.Request.Context(), callerOf(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.List(c.Request.Context(), callerOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.Orders.Get(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type orderStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.PaymentStatus)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) fixOrders(c *gin.Context) {
	n, err := h.svc.Orders.FixLegacyOrders(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Orders updated successfully",
		"modifiedCount": n,
	})
}

// createReservation holds stock for a cart line until checkout or expiry.
func (h *Handler) createReservation(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	reservation, err := h.svc.Inventory.Reserve(c.Request.Context(), req, h.opts.CartHoldTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

func (h *Handler) releaseReservation(c *gin.Context) {
	reservation, err := h.svc.Inventory.Release(c.Request.Context(), c.Param("token"), "abandoned")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Reservation released",
		"reservation": reservation,
	})
}
